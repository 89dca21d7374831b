package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"
	"time"

	"parcelsort/internal/app"
	"parcelsort/internal/config"
	"parcelsort/internal/domain/auth"
	"parcelsort/pkg/logger"
)

type tokenResult struct {
	Subject   string    `json:"subject"`
	Roles     []string  `json:"roles"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// runToken prints a signed bearer token for an operator.
//
//	importer token -config cfg.yaml -subject alice -roles operator,admin
func runToken(args []string, out io.Writer, log *logger.Logger) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to YAML config")
	subject := fs.String("subject", "", "operator id")
	roles := fs.String("roles", auth.RoleOperator, "comma separated roles")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*subject) == "" {
		return errors.New("token: -subject is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	var granted []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			granted = append(granted, r)
		}
	}

	token, expiresAt, err := app.NewJWTService(cfg, log).GenerateAccessToken(*subject, granted)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(tokenResult{
		Subject:   *subject,
		Roles:     granted,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
	})
}
