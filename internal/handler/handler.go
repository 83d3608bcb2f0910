package handler

import (
	"net/http"
	"strconv"

	"github.com/fixora/wallet/internal/context"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
)

type queryStringValues struct {
	Page   int
	Limit  int
	Filter ledger.Filter
}

func retrieveUrlQueryValues(r *http.Request) (*queryStringValues, bool) {
	queryValues := &queryStringValues{
		Page:  1,
		Limit: 20,
	}

	pageStr := r.URL.Query().Get("page")
	if pageStr != "" {
		parsedPage, err := strconv.Atoi(pageStr)
		if err != nil || parsedPage < 1 {
			return nil, false
		}
		queryValues.Page = parsedPage
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 {
			return nil, false
		}
		queryValues.Limit = parsedLimit
	}

	filter, ok := ledger.ParseFilter(r.URL.Query().Get("filter"))
	if !ok {
		return nil, false
	}
	queryValues.Filter = filter

	return queryValues, true
}

// walletOwnedBy reports whether the authenticated actor may operate on the
// wallet. Admin tokens may operate on any wallet.
func walletOwnedBy(wallet *repository.Wallet, user *context.AuthUser) bool {
	if user == nil {
		return false
	}
	return wallet.UserID == user.ID || user.Role == context.AuthUserRoleAdmin
}
