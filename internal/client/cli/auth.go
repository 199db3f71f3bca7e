package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/storefront/internal/client/storage/credentials"
	"github.com/dmitrijs2005/storefront/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and exchanges them for a bearer
// token at the gateway.
//
// On success the token is persisted to the local credential store and the
// session guard arms the expiry and liveness timers. Invalid credentials are
// reported to the user and do not surface as an error; the password byte
// slice is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	token, err := a.api.Token(ctx, userName, string(password))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			printlnFn("Invalid username or password")
			return nil
		}
		printlnFn("Login failed:", err.Error())
		return err
	}

	if err := a.repos.Credentials.Set(ctx, credentials.TokenKey, token); err != nil {
		return err
	}
	a.guard.ScheduleExpiry(ctx, token)

	if s, ok := a.guard.SessionFromToken(token); ok {
		a.setUserName(s.Claims.Sub)
	} else {
		a.setUserName(userName)
	}
	printlnFn("Login successful")
	return nil
}

// Logout stops background polling and signs the session out, clearing the
// stored credential.
func (a *App) Logout(ctx context.Context) error {
	a.orders.Teardown()
	a.guard.SignOut(ctx, "user logout")
	return nil
}
