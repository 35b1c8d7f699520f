package stripe

import (
	"context"
	"strings"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/money"
	stripego "github.com/stripe/stripe-go/v76"
)

// Customer funding instruments are payment methods attached to the customer.
// Merchant funding instruments are external bank accounts of the connected
// account. Both are usable as soon as Stripe returns them, so they are
// reported verified.

func fromPaymentMethod(pm *stripego.PaymentMethod) gateway.FundingInstrument {
	fi := gateway.FundingInstrument{
		ID:       pm.ID,
		Status:   "verified",
		Verified: true,
		Removed:  pm.Customer == nil,
	}
	if pm.BillingDetails != nil {
		fi.Name = pm.BillingDetails.Name
	}
	switch {
	case pm.Card != nil:
		fi.Type = gateway.FundingTypeCard
		fi.BankName = string(pm.Card.Brand)
		fi.Last4 = pm.Card.Last4
	case pm.USBankAccount != nil:
		fi.Type = gateway.FundingTypeBank
		fi.BankName = pm.USBankAccount.BankName
		fi.Last4 = pm.USBankAccount.Last4
	default:
		fi.Type = string(pm.Type)
	}
	return fi
}

func fromBankAccount(ba *stripego.BankAccount) gateway.FundingInstrument {
	return gateway.FundingInstrument{
		ID:       ba.ID,
		Name:     ba.AccountHolderName,
		Type:     gateway.FundingTypeBank,
		BankName: ba.BankName,
		Last4:    ba.Last4,
		Status:   string(ba.Status),
		Verified: ba.Status != stripego.BankAccountStatusErrored && ba.Status != stripego.BankAccountStatusVerificationFailed,
		Removed:  ba.Deleted,
	}
}

func (g *Gateway) CreateFundingSource(ctx context.Context, in gateway.FundingSourceLinkInput) (*gateway.FundingInstrument, error) {
	if in.Token == "" {
		return nil, apperr.Invalid("token", "required")
	}
	if in.Owner.IsMerchant() {
		params := &stripego.BankAccountParams{
			Account: stripego.String(in.Owner.AccountID),
			Token:   stripego.String(in.Token),
		}
		params.Context = ctx
		ba, err := g.api.BankAccounts.New(params)
		if err != nil {
			return nil, providerErr(gateway.OpCreateFundingSource, err)
		}
		fi := fromBankAccount(ba)
		return &fi, nil
	}

	params := &stripego.PaymentMethodAttachParams{Customer: stripego.String(in.Owner.CustomerID)}
	params.Context = ctx
	pm, err := g.api.PaymentMethods.Attach(in.Token, params)
	if err != nil {
		return nil, providerErr(gateway.OpCreateFundingSource, err)
	}
	fi := fromPaymentMethod(pm)
	return &fi, nil
}

func (g *Gateway) CreateFundingSourceManually(ctx context.Context, in gateway.FundingSourceManualInput) (*gateway.FundingInstrument, error) {
	holderType := strings.ToLower(in.AccountHolderType)
	if holderType == "" {
		holderType = "individual"
	}
	country := in.Country
	if country == "" {
		country = "US"
	}
	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = "usd"
	}

	if in.Owner.IsMerchant() {
		params := &stripego.BankAccountParams{
			Account:           stripego.String(in.Owner.AccountID),
			AccountHolderName: optional(in.AccountHolderName),
			AccountHolderType: stripego.String(holderType),
			AccountNumber:     stripego.String(in.AccountNumber),
			RoutingNumber:     stripego.String(in.RoutingNumber),
			Country:           stripego.String(country),
			Currency:          stripego.String(currency),
		}
		params.Context = ctx
		ba, err := g.api.BankAccounts.New(params)
		if err != nil {
			return nil, providerErr(gateway.OpCreateFundingSourceManually, err)
		}
		fi := fromBankAccount(ba)
		return &fi, nil
	}

	accountType := strings.ToLower(in.AccountType)
	if accountType == "" {
		accountType = "checking"
	}
	name := in.AccountHolderName
	if name == "" {
		name = in.Name
	}
	params := &stripego.PaymentMethodParams{
		Type: stripego.String(string(stripego.PaymentMethodTypeUSBankAccount)),
		USBankAccount: &stripego.PaymentMethodUSBankAccountParams{
			AccountHolderType: stripego.String(holderType),
			AccountNumber:     stripego.String(in.AccountNumber),
			AccountType:       stripego.String(accountType),
			RoutingNumber:     stripego.String(in.RoutingNumber),
		},
		BillingDetails: &stripego.PaymentMethodBillingDetailsParams{Name: optional(name)},
	}
	params.Context = ctx
	pm, err := g.api.PaymentMethods.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpCreateFundingSourceManually, err)
	}
	return g.CreateFundingSource(ctx, gateway.FundingSourceLinkInput{Owner: in.Owner, Name: in.Name, Token: pm.ID})
}

func (g *Gateway) UpdateFundingSource(ctx context.Context, in gateway.FundingSourceUpdateInput) (*gateway.FundingInstrument, error) {
	if in.Owner.IsMerchant() {
		params := &stripego.BankAccountParams{Account: stripego.String(in.Owner.AccountID)}
		params.Context = ctx
		if in.Removed {
			ba, err := g.api.BankAccounts.Del(in.FundingID, params)
			if err != nil {
				return nil, providerErr(gateway.OpUpdateFundingSource, err)
			}
			fi := fromBankAccount(ba)
			fi.Removed = true
			return &fi, nil
		}
		params.AccountHolderName = optional(in.Name)
		ba, err := g.api.BankAccounts.Update(in.FundingID, params)
		if err != nil {
			return nil, providerErr(gateway.OpUpdateFundingSource, err)
		}
		fi := fromBankAccount(ba)
		return &fi, nil
	}

	if in.Removed {
		params := &stripego.PaymentMethodDetachParams{}
		params.Context = ctx
		pm, err := g.api.PaymentMethods.Detach(in.FundingID, params)
		if err != nil {
			return nil, providerErr(gateway.OpUpdateFundingSource, err)
		}
		fi := fromPaymentMethod(pm)
		fi.Removed = true
		return &fi, nil
	}
	params := &stripego.PaymentMethodParams{
		BillingDetails: &stripego.PaymentMethodBillingDetailsParams{Name: optional(in.Name)},
	}
	params.Context = ctx
	pm, err := g.api.PaymentMethods.Update(in.FundingID, params)
	if err != nil {
		return nil, providerErr(gateway.OpUpdateFundingSource, err)
	}
	fi := fromPaymentMethod(pm)
	return &fi, nil
}

func (g *Gateway) RetrieveFundingSource(ctx context.Context, owner gateway.Owner, fundingID string) (*gateway.FundingInstrument, error) {
	if owner.IsMerchant() {
		params := &stripego.BankAccountParams{Account: stripego.String(owner.AccountID)}
		params.Context = ctx
		ba, err := g.api.BankAccounts.Get(fundingID, params)
		if err != nil {
			return nil, providerErr(gateway.OpRetrieveFundingSource, err)
		}
		fi := fromBankAccount(ba)
		return &fi, nil
	}
	params := &stripego.PaymentMethodParams{}
	params.Context = ctx
	pm, err := g.api.PaymentMethods.Get(fundingID, params)
	if err != nil {
		return nil, providerErr(gateway.OpRetrieveFundingSource, err)
	}
	fi := fromPaymentMethod(pm)
	return &fi, nil
}

func (g *Gateway) ListFundingSources(ctx context.Context, owner gateway.Owner) ([]gateway.FundingInstrument, error) {
	var out []gateway.FundingInstrument
	if owner.IsMerchant() {
		params := &stripego.BankAccountListParams{Account: stripego.String(owner.AccountID)}
		params.Context = ctx
		it := g.api.BankAccounts.List(params)
		for it.Next() {
			out = append(out, fromBankAccount(it.BankAccount()))
		}
		if err := it.Err(); err != nil {
			return nil, providerErr(gateway.OpListFundingSources, err)
		}
		return out, nil
	}

	params := &stripego.PaymentMethodListParams{Customer: stripego.String(owner.CustomerID)}
	params.Context = ctx
	it := g.api.PaymentMethods.List(params)
	for it.Next() {
		out = append(out, fromPaymentMethod(it.PaymentMethod()))
	}
	if err := it.Err(); err != nil {
		return nil, providerErr(gateway.OpListFundingSources, err)
	}
	return out, nil
}

// GetFundingSourceBalance reports the connected account's available balance.
// Customer payment methods carry no balance.
func (g *Gateway) GetFundingSourceBalance(ctx context.Context, owner gateway.Owner, _ string) (*gateway.Balance, error) {
	if !owner.IsMerchant() {
		return nil, apperr.Unsupported(providerName, gateway.OpGetFundingSourceBalance)
	}
	params := &stripego.BalanceParams{}
	params.Context = ctx
	params.SetStripeAccount(owner.AccountID)
	bal, err := g.api.Balance.Get(params)
	if err != nil {
		return nil, providerErr(gateway.OpGetFundingSourceBalance, err)
	}
	if len(bal.Available) == 0 {
		return &gateway.Balance{Currency: "USD"}, nil
	}
	first := bal.Available[0]
	currency := money.Normalize(string(first.Currency))
	return &gateway.Balance{Value: money.FromMinor(first.Amount, currency), Currency: currency}, nil
}

func (g *Gateway) VerifyMicrodeposit(context.Context, gateway.MicrodepositInput) error {
	return apperr.Unsupported(providerName, gateway.OpVerifyMicrodeposit)
}
