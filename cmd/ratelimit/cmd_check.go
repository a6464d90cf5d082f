package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/AikidoSec/ratelimit-go/ratelimit"
)

type checkInput struct {
	IP        string
	UserID    string
	APIKey    string
	Endpoint  string
	Method    string
	UserAgent string
	Rules     []string
}

type checkOutput struct {
	Allowed bool         `json:"allowed"`
	Results []resultView `json:"results"`
}

func checkCommand(ctx context.Context, out io.Writer, configPath string, in checkInput) error {
	cfg, err := ratelimit.LoadConfig(configPath)
	if err != nil {
		return err
	}
	engine, err := ratelimit.NewFromConfig(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	results := engine.CheckLimit(ctx, ratelimit.Request{
		IP:        in.IP,
		UserID:    in.UserID,
		APIKey:    in.APIKey,
		Endpoint:  in.Endpoint,
		Method:    in.Method,
		UserAgent: in.UserAgent,
	}, in.Rules...)

	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, newResultView(r))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(checkOutput{
		Allowed: ratelimit.AllAllowed(results),
		Results: views,
	})
}
