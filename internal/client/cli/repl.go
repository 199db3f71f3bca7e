package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ShowCart(ctx context.Context) error
	AddItem(ctx context.Context, args []string) error
	RemoveItem(ctx context.Context, args []string) error
	ClearCart(ctx context.Context) error
	Checkout(ctx context.Context) error
	Orders(ctx context.Context) error
	Retry(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the storefront CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help           — show available commands
//	  - login          — authenticate against the gateway
//	  - cart | add | remove | clear — operate on the offline cart
//	  - exit | quit    — leave the program
//
//	Logged in:
//	  - help           — show available commands
//	  - cart           — show the merged cart
//	  - add <id> [qty] — add a product to the cart
//	  - remove <n>     — drop one unit of cart line n
//	  - clear          — empty the cart
//	  - checkout       — create an order and start status polling
//	  - orders         — list the session's orders
//	  - retry [method] — retry payment for the active order
//	  - logout         — log out
//	  - exit | quit    — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("store> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: cart, add, remove, clear, checkout, orders, retry, logout, exit")
			} else {
				printlnFn("Available commands: login, cart, add, remove, clear, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "cart":
			_ = a.ShowCart(ctx)

		case "add":
			_ = a.AddItem(ctx, args)

		case "remove":
			_ = a.RemoveItem(ctx, args)

		case "clear":
			_ = a.ClearCart(ctx)

		case "checkout":
			_ = a.Checkout(ctx)

		case "orders":
			_ = a.Orders(ctx)

		case "retry":
			_ = a.Retry(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
