package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Tonic56/stock-trading-simulator/internal/app"
	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/service"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/Tonic56/stock-trading-simulator/lib/usd"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

// environment is shared by every command. open is replaced in tests.
type environment struct {
	out    io.Writer
	errOut io.Writer
	open   func(ctx context.Context) (*app.Services, error)
}

func (e *environment) run(ctx context.Context, fn func(*app.Services) error) subcommands.ExitStatus {
	s, err := e.open(ctx)
	if err != nil {
		fmt.Fprintf(e.errOut, "Error opening services: %v\n", err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	if err := fn(s); err != nil {
		fmt.Fprintf(e.errOut, "Error: %s\n", errs.Message(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (e *environment) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.errOut, format+"\n", args...)
	return subcommands.ExitUsageError
}

func resolveUser(ctx context.Context, s *app.Services, username string) (uuid.UUID, error) {
	user, err := s.Users.GetUserByName(ctx, username)
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID, nil
}

// quoteCmd prints the current price of one or more symbols.
type quoteCmd struct {
	env *environment
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "look up the current price of symbols" }
func (*quoteCmd) Usage() string {
	return `tradectl quote <symbol>...
`
}
func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return c.env.usage("at least one symbol is required")
	}

	return c.env.run(ctx, func(s *app.Services) error {
		for _, symbol := range f.Args() {
			q, err := s.Trading.Quote(ctx, symbol)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.env.out, "A share of %s (%s) costs %s.\n", q.Name, q.Symbol, usd.Format(q.Price))
		}
		return nil
	})
}

type registerCmd struct {
	env      *environment
	username string
	password string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account with the starting cash" }
func (*registerCmd) Usage() string {
	return `tradectl register -u <username> -p <password>
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.StringVar(&c.password, "p", "", "password")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(s *app.Services) error {
		user, err := s.Auth.Register(ctx, c.username, c.password, c.password)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.out, "Registered %s (%s) with %s.\n", user.Username, user.ID, usd.Format(user.Cash))
		return nil
	})
}

type portfolioCmd struct {
	env      *environment
	username string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "display holdings, cash and grand total" }
func (*portfolioCmd) Usage() string {
	return `tradectl portfolio -u <username>
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
}

func (c *portfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" {
		return c.env.usage("-u is required")
	}

	return c.env.run(ctx, func(s *app.Services) error {
		userID, err := resolveUser(ctx, s, c.username)
		if err != nil {
			return err
		}

		view, err := s.Trading.Portfolio(ctx, userID)
		if err != nil {
			return err
		}

		return renderPortfolio(c.env.out, view)
	})
}

func renderPortfolio(out io.Writer, view *models.PortfolioView) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Symbol\tName\tShares\tPrice\tTotal\t")
	for _, h := range view.Holdings {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t\n", h.Symbol, h.Name, h.Shares, usd.Format(h.Price), usd.Format(h.Total))
	}
	fmt.Fprintf(w, "Cash\t\t\t\t%s\t\n", usd.Format(view.Cash))
	fmt.Fprintf(w, "TOTAL\t\t\t\t%s\t\n", usd.Format(view.GrandTotal))
	return w.Flush()
}

type historyCmd struct {
	env      *environment
	username string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list every trade in execution order" }
func (*historyCmd) Usage() string {
	return `tradectl history -u <username>
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" {
		return c.env.usage("-u is required")
	}

	return c.env.run(ctx, func(s *app.Services) error {
		userID, err := resolveUser(ctx, s, c.username)
		if err != nil {
			return err
		}

		entries, err := s.Trading.History(ctx, userID)
		if err != nil {
			return err
		}

		return renderHistory(c.env.out, entries)
	})
}

func renderHistory(out io.Writer, entries []models.LedgerEntry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Symbol\tShares\tPrice\tTransacted")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Symbol, e.Shares, usd.Format(e.Price), e.TransactedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

type depositCmd struct {
	env      *environment
	username string
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "add cash to an account" }
func (*depositCmd) Usage() string {
	return `tradectl deposit -u <username> <amount>
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
}

func (c *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" || f.NArg() != 1 {
		return c.env.usage("usage: %s", c.Usage())
	}

	amount, err := service.ParseAmount(f.Arg(0))
	if err != nil {
		return c.env.usage("%s", errs.Message(err))
	}

	return c.env.run(ctx, func(s *app.Services) error {
		userID, err := resolveUser(ctx, s, c.username)
		if err != nil {
			return err
		}

		cash, err := s.Trading.Deposit(ctx, userID, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.out, "Deposited %s, cash is now %s.\n", usd.Format(amount), usd.Format(cash))
		return nil
	})
}

type side string

const (
	sideBuy  side = "buy"
	sideSell side = "sell"
)

// tradeCmd is both buy and sell.
type tradeCmd struct {
	env      *environment
	side     side
	username string
}

func (c *tradeCmd) Name() string { return string(c.side) }
func (c *tradeCmd) Synopsis() string {
	if c.side == sideBuy {
		return "buy shares at the current price"
	}
	return "sell shares at the current price"
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf("tradectl %s -u <username> <symbol> <shares>\n", c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" || f.NArg() != 2 {
		return c.env.usage("usage: %s", c.Usage())
	}

	symbol := f.Arg(0)
	quantity, err := service.ParseQuantity(f.Arg(1))
	if err != nil {
		return c.env.usage("%s", errs.Message(err))
	}

	return c.env.run(ctx, func(s *app.Services) error {
		userID, err := resolveUser(ctx, s, c.username)
		if err != nil {
			return err
		}

		execute := s.Trading.Buy
		verb := "Bought"
		if c.side == sideSell {
			execute = s.Trading.Sell
			verb = "Sold"
		}

		result, err := execute(ctx, userID, symbol, quantity)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.env.out, "%s %d %s at %s. Cash is now %s.\n",
			verb, quantity, result.Entry.Symbol, usd.Format(result.Entry.Price), usd.Format(result.Cash))
		return nil
	})
}
