package pay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orris-inc/checkout/internal/infrastructure/config"
	"github.com/orris-inc/checkout/internal/infrastructure/page"
	httpRouter "github.com/orris-inc/checkout/internal/interfaces/http"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/internal/shared/utils"
	"github.com/orris-inc/checkout/sdk/checkout"
)

var (
	env     string
	timeout time.Duration
)

// NewCommands returns the commands that drive the checkout client directly,
// without the HTTP server.
func NewCommands() []*cobra.Command {
	commands := []*cobra.Command{
		newPayCommand(),
		newVerifyCommand(),
		newMethodsCommand(),
		newCardsCommand(),
	}
	for _, cmd := range commands {
		cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
		cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Overall time allowed for the command")
	}
	return commands
}

func newPayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pay <request-file>",
		Short: "Run a checkout from a request file",
		Long: `Run a checkout from a YAML or JSON payment request and print the outcome.
A checkout that pauses for 3DS can be finished later with "verify" when the
challenge slot is stored in redis or the database.`,
		Args: cobra.ExactArgs(1),
		RunE: runPay,
	}
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the pending 3DS challenge",
		RunE:  runVerify,
	}
}

func newMethodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the payment methods of the merchant",
		RunE:  runMethods,
	}
}

func newCardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards <email>",
		Short: "List the saved cards of a customer",
		Args:  cobra.ExactArgs(1),
		RunE:  runCards,
	}
	return cmd
}

// session is the command line shopper session for the duration of one
// command. Every command shares one challenge slot, so verify resumes what
// pay left pending.
type session struct {
	cfg       *config.Config
	log       logger.Interface
	container *httpRouter.Container
	client    *checkout.Client
	pages     *page.Renderer
}

func open() (*session, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	// the command serves no traffic
	cfg.Server.RateLimit = 0

	container, err := httpRouter.NewContainer(cfg, env, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checkout: %w", err)
	}

	client, pages, err := container.Session()
	if err != nil {
		_ = container.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to open checkout session: %w", err)
	}

	return &session{cfg: cfg, log: log, container: container, client: client, pages: pages}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.container.Shutdown(ctx); err != nil {
		s.log.Warnw("checkout shutdown incomplete", "error", err)
	}
}

func runPay(cmd *cobra.Command, args []string) error {
	req, err := readRequest(args[0])
	if err != nil {
		return err
	}

	s, err := open()
	if err != nil {
		return err
	}
	defer s.close()

	if !req.CardOnFile {
		req.CardOnFile = s.cfg.Checkout.CardOnFile
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	fields := []any{
		"email", utils.MaskEmail(req.Customer.Email),
		"total", req.Cart.Total.String(),
	}
	if req.Card != nil {
		fields = append(fields, "card_id", utils.MaskToken(req.Card.ID), "card", req.Card.Fields)
	} else {
		fields = append(fields, "payment_method", req.PaymentMethod)
	}
	s.log.Infow("running checkout", fields...)

	outcome, err := s.client.Pay(ctx, req)
	if err != nil {
		return err
	}

	return printOutcome(cmd.OutOrStdout(), outcome, s.pages)
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := open()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	outcome, err := s.client.VerifyPendingChallenge(ctx)
	if err != nil {
		return err
	}
	if outcome == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no challenge pending")
		return nil
	}

	return printOutcome(cmd.OutOrStdout(), outcome, nil)
}

func runMethods(cmd *cobra.Command, args []string) error {
	s, err := open()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	methods, err := s.client.ListPaymentMethods(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), methods)
}

func runCards(cmd *cobra.Command, args []string) error {
	s, err := open()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cards, err := s.client.ListCards(ctx, &checkout.Customer{Email: args[0]})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), cards)
}

// readRequest decodes a payment request by file extension; anything other
// than .json is read as YAML.
func readRequest(path string) (*checkout.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	var req checkout.Request
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &req)
	} else {
		err = yaml.Unmarshal(data, &req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode request %s: %w", path, err)
	}
	return &req, nil
}

type outcomeOutput struct {
	*checkout.Outcome
	Page *page.Page `json:"page,omitempty"`
}

func printOutcome(w io.Writer, outcome *checkout.Outcome, pages *page.Renderer) error {
	out := outcomeOutput{Outcome: outcome}
	if pages != nil && outcome.State.IsPaused() {
		if current, ok := pages.Current(); ok {
			out.Page = &current
		}
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
