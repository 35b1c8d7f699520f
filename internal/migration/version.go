package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// Manifest describes the embedded schema.
type Manifest struct {
	Latest   uint
	Checksum string
	Files    []string
}

// ReadManifest lists the embedded up migrations, their highest version and
// a checksum over names and contents.
func ReadManifest() (Manifest, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return Manifest{}, fmt.Errorf("list migrations: %w", err)
	}

	var m Manifest
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version, ok := fileVersion(name)
		if !ok {
			return Manifest{}, fmt.Errorf("invalid migration filename: %s", name)
		}
		m.Latest = max(m.Latest, version)
		m.Files = append(m.Files, name)
	}
	if m.Latest == 0 {
		return Manifest{}, errors.New("no embedded migrations found")
	}
	sort.Strings(m.Files)

	sum := sha256.New()
	for _, name := range m.Files {
		content, err := embeddedMigrations.ReadFile(migrationsDir + "/" + name)
		if err != nil {
			return Manifest{}, fmt.Errorf("read migration %s: %w", name, err)
		}
		sum.Write([]byte(name))
		sum.Write([]byte{0})
		sum.Write(content)
		sum.Write([]byte{0})
	}
	m.Checksum = hex.EncodeToString(sum.Sum(nil))
	return m, nil
}

// fileVersion parses the numeric prefix of 0001_init.up.sql.
func fileVersion(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
