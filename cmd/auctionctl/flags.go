package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	urlFlag = cli.StringFlag{
		Name:   "url",
		Value:  "http://localhost:8000",
		Usage:  "base URL of the auction daemon",
		EnvVar: "AUCTION_URL",
	}
	apiKeyFlag = cli.StringFlag{
		Name:   "api-key",
		Usage:  "API key sent as X-API-Key",
		EnvVar: "AUCTION_API_KEY",
	}
	keyFlag = cli.StringFlag{
		Name:   "key",
		Usage:  "hex private key used to sign requests",
		EnvVar: "AUCTION_PRIVATE_KEY",
	}
	keyFileFlag = cli.StringFlag{
		Name:   "keyfile",
		Usage:  "encrypted key file used to sign requests",
		EnvVar: "AUCTION_KEY_FILE",
	}
	passwordFlag = cli.StringFlag{
		Name:   "password",
		Usage:  "password of the key file",
		EnvVar: "AUCTION_KEY_PASSWORD",
	}
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Value: defaultTimeout,
		Usage: "per-request timeout",
	}

	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "write an encrypted key file to this path instead of printing the key",
	}
	assetFlag = cli.StringFlag{
		Name:  "asset",
		Usage: "asset (mint) address",
	}
	treasuryFlag = cli.StringFlag{
		Name:  "treasury",
		Usage: "treasury token account address",
	}
	minimumFlag = cli.StringFlag{
		Name:  "minimum",
		Value: "1",
		Usage: "minimum bid as a decimal amount",
	}
	accountFlag = cli.StringFlag{
		Name:  "account",
		Usage: "token account owned by the signer",
	}
	amountFlag = cli.StringFlag{
		Name:  "amount",
		Usage: "decimal amount, e.g. 12.5",
	}
	changeFlag = cli.StringFlag{
		Name:  "change",
		Usage: "signed decimal change, e.g. -2.5",
	}
	winnerFlag = cli.StringFlag{
		Name:  "winner",
		Usage: "bidder address of the winning bid",
	}
	agentFlag = cli.StringFlag{
		Name:  "agent",
		Usage: "new agent address",
	}
	activeFlag = cli.BoolFlag{
		Name:  "active",
		Usage: "only list active bids",
	}
	limitFlag = cli.IntFlag{
		Name:  "limit",
		Value: 50,
		Usage: "maximum number of entries",
	}
	offsetFlag = cli.IntFlag{
		Name:  "offset",
		Usage: "number of entries to skip",
	}
	afterFlag = cli.StringFlag{
		Name:  "after",
		Usage: "only events after this stream id",
	}
)
