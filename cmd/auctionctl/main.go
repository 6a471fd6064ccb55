// Command auctionctl is the operator and bidder CLI for the auction daemon.
// It signs mutating requests with a local key and prints JSON responses.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/alanyoungcy/sealedpool/internal/crypto"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "auctionctl"
	app.Usage = "operate and bid on a sealed-pool auction"
	app.Version = version
	app.Flags = []cli.Flag{urlFlag, apiKeyFlag, keyFlag, keyFileFlag, passwordFlag, timeoutFlag}
	app.Commands = []cli.Command{
		{
			Name:   "keygen",
			Usage:  "generate a bidder key",
			Flags:  []cli.Flag{outFlag},
			Action: keygenAction,
		},
		{
			Name:   "address",
			Usage:  "print the signer address",
			Action: addressAction,
		},
		{
			Name:   "initialize",
			Usage:  "initialize the auction with the signer as agent",
			Flags:  []cli.Flag{assetFlag, treasuryFlag, minimumFlag},
			Action: initializeAction,
		},
		{
			Name:   "open",
			Usage:  "open a bid by escrowing --amount from --account",
			Flags:  []cli.Flag{accountFlag, amountFlag},
			Action: openAction,
		},
		{
			Name:   "adjust",
			Usage:  "raise or lower the active bid by --change",
			Flags:  []cli.Flag{accountFlag, changeFlag},
			Action: adjustAction,
		},
		{
			Name:   "withdraw",
			Usage:  "refund the active bid to --account",
			Flags:  []cli.Flag{accountFlag},
			Action: withdrawAction,
		},
		{
			Name:   "close",
			Usage:  "close an inactive bid and reclaim its deposit",
			Action: closeAction,
		},
		{
			Name:   "settle",
			Usage:  "pay the --winner bid to the treasury (agent only)",
			Flags:  []cli.Flag{winnerFlag},
			Action: settleAction,
		},
		{
			Name:   "set-minimum",
			Usage:  "change the minimum bid (agent only)",
			Flags:  []cli.Flag{amountFlag},
			Action: setMinimumAction,
		},
		{
			Name:   "set-agent",
			Usage:  "hand the agent role to --agent (agent only)",
			Flags:  []cli.Flag{agentFlag},
			Action: setAgentAction,
		},
		{
			Name:   "state",
			Usage:  "show the auction state and escrow balance",
			Action: getAction("/api/auction"),
		},
		{
			Name:   "invariants",
			Usage:  "check the escrow accounting invariants",
			Action: getAction("/api/invariants"),
		},
		{
			Name:   "bids",
			Usage:  "list bids",
			Flags:  []cli.Flag{activeFlag, limitFlag, offsetFlag},
			Action: bidsAction,
		},
		{
			Name:      "bid",
			Usage:     "show one bid",
			ArgsUsage: "<bidder>",
			Action:    bidAction,
		},
		{
			Name:   "events",
			Usage:  "list committed events",
			Flags:  []cli.Flag{afterFlag, limitFlag},
			Action: eventsAction,
		},
		{
			Name:   "audit",
			Usage:  "list audit log entries (requires postgres on the daemon)",
			Flags:  []cli.Flag{limitFlag, offsetFlag},
			Action: auditAction,
		},
	}
	return app
}

// signer loads the signing key from the global flags; it returns nil when
// none is configured.
func signer(ctx *cli.Context) (*crypto.Signer, error) {
	src := crypto.KeySource{
		RawPrivateKey: ctx.GlobalString(keyFlag.Name),
		KeyFilePath:   ctx.GlobalString(keyFileFlag.Name),
		Password:      ctx.GlobalString(passwordFlag.Name),
	}
	if src.RawPrivateKey == "" && src.KeyFilePath == "" {
		return nil, nil
	}
	return crypto.LoadSigner(src)
}

func apiClient(ctx *cli.Context) (*client, error) {
	s, err := signer(ctx)
	if err != nil {
		return nil, err
	}
	return newClient(
		ctx.GlobalString(urlFlag.Name),
		ctx.GlobalString(apiKeyFlag.Name),
		s,
		ctx.GlobalDuration(timeoutFlag.Name),
	), nil
}

// call runs one request and prints the response.
func call(ctx *cli.Context, method, path string, body any) error {
	c, err := apiClient(ctx)
	if err != nil {
		return err
	}
	data, err := c.do(context.Background(), method, path, body)
	if err != nil {
		return err
	}
	return printJSON(ctx.App.Writer, data)
}

func required(ctx *cli.Context, names ...string) error {
	for _, n := range names {
		if ctx.String(n) == "" {
			return fmt.Errorf("--%s is required", n)
		}
	}
	return nil
}

func keygenAction(ctx *cli.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	s, err := crypto.NewSigner(key)
	if err != nil {
		return err
	}
	out := ctx.String(outFlag.Name)
	if out == "" {
		fmt.Fprintf(ctx.App.Writer, "address: %s\nkey:     %s\n", s.Address().Hex(), key)
		return nil
	}
	password := ctx.GlobalString(passwordFlag.Name)
	if password == "" {
		return fmt.Errorf("--password is required with --out")
	}
	if err := crypto.WriteKeyFile(out, key, password); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "address: %s\nkeyfile: %s\n", s.Address().Hex(), out)
	return nil
}

func addressAction(ctx *cli.Context) error {
	s, err := signer(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("no signing key configured (--key or --keyfile)")
	}
	fmt.Fprintln(ctx.App.Writer, s.Address().Hex())
	return nil
}

func initializeAction(ctx *cli.Context) error {
	if err := required(ctx, assetFlag.Name, treasuryFlag.Name); err != nil {
		return err
	}
	return call(ctx, http.MethodPost, "/api/auction/initialize", map[string]string{
		"asset":       ctx.String(assetFlag.Name),
		"treasury":    ctx.String(treasuryFlag.Name),
		"minimum_bid": ctx.String(minimumFlag.Name),
	})
}

func openAction(ctx *cli.Context) error {
	if err := required(ctx, accountFlag.Name, amountFlag.Name); err != nil {
		return err
	}
	return call(ctx, http.MethodPost, "/api/bids", map[string]string{
		"account": ctx.String(accountFlag.Name),
		"amount":  ctx.String(amountFlag.Name),
	})
}

func adjustAction(ctx *cli.Context) error {
	if err := required(ctx, accountFlag.Name, changeFlag.Name); err != nil {
		return err
	}
	return call(ctx, http.MethodPatch, "/api/bids", map[string]string{
		"account": ctx.String(accountFlag.Name),
		"change":  ctx.String(changeFlag.Name),
	})
}

func withdrawAction(ctx *cli.Context) error {
	if err := required(ctx, accountFlag.Name); err != nil {
		return err
	}
	return call(ctx, http.MethodPost, "/api/bids/withdraw", map[string]string{
		"account": ctx.String(accountFlag.Name),
	})
}

func closeAction(ctx *cli.Context) error {
	return call(ctx, http.MethodDelete, "/api/bids", nil)
}

func settleAction(ctx *cli.Context) error {
	if err := required(ctx, winnerFlag.Name); err != nil {
		return err
	}
	return call(ctx, http.MethodPost, "/api/auction/settle", map[string]string{
		"winner": ctx.String(winnerFlag.Name),
	})
}

func setMinimumAction(ctx *cli.Context) error {
	if err := required(ctx, amountFlag.Name); err != nil {
		return err
	}
	return call(ctx, http.MethodPut, "/api/auction/minimum-bid", map[string]string{
		"minimum_bid": ctx.String(amountFlag.Name),
	})
}

func setAgentAction(ctx *cli.Context) error {
	if err := required(ctx, agentFlag.Name); err != nil {
		return err
	}
	return call(ctx, http.MethodPut, "/api/auction/agent", map[string]string{
		"agent": ctx.String(agentFlag.Name),
	})
}

func getAction(path string) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		return call(ctx, http.MethodGet, path, nil)
	}
}

func bidsAction(ctx *cli.Context) error {
	q := url.Values{}
	if ctx.Bool(activeFlag.Name) {
		q.Set("active", "true")
	}
	q.Set("limit", strconv.Itoa(ctx.Int(limitFlag.Name)))
	if off := ctx.Int(offsetFlag.Name); off > 0 {
		q.Set("offset", strconv.Itoa(off))
	}
	return call(ctx, http.MethodGet, "/api/bids?"+q.Encode(), nil)
}

func bidAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: auctionctl bid <bidder>")
	}
	return call(ctx, http.MethodGet, "/api/bids/"+url.PathEscape(ctx.Args().First()), nil)
}

func eventsAction(ctx *cli.Context) error {
	q := url.Values{}
	if after := ctx.String(afterFlag.Name); after != "" {
		q.Set("after", after)
	}
	q.Set("limit", strconv.Itoa(ctx.Int(limitFlag.Name)))
	return call(ctx, http.MethodGet, "/api/events?"+q.Encode(), nil)
}

func auditAction(ctx *cli.Context) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(ctx.Int(limitFlag.Name)))
	if off := ctx.Int(offsetFlag.Name); off > 0 {
		q.Set("offset", strconv.Itoa(off))
	}
	return call(ctx, http.MethodGet, "/api/audit?"+q.Encode(), nil)
}
