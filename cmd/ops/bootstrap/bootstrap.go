package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType selects the SSM storage type.
type ParameterType int

const (
	ParamSecureString ParameterType = iota
	ParamString
)

// BootstrapStep is one parameter the Lambda functions read at cold start.
type BootstrapStep struct {
	HumanLabel string

	// EnvVar is the configuration variable the parameter backs. The printed
	// pointer is EnvVar + "_SSM_PARAM".
	EnvVar string

	// SSMKey is appended to /{env}/recruitfluency/.
	SSMKey string

	ParamType  ParameterType
	Prompt     string
	ValidateFn func(ctx context.Context, input string) ValidationResult
	IsSecret   bool

	// Optional steps are skipped on empty input without confirmation.
	Optional bool

	Phase string
}

const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory returns the ordered parameter list.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			HumanLabel: "Database URL",
			EnvVar:     "DATABASE_URL",
			SSMKey:     "database/url",
			ParamType:  ParamSecureString,
			Prompt: `1. Open the Postgres instance that holds coaches, athletes and distributions.
   2. Copy a connection string for a role with read/write on those tables.
   3. Paste the full postgres://... string here:`,
			ValidateFn: v.ValidateDatabaseURL,
			IsSecret:   true,
			Phase:      "Data",
		},
		{
			HumanLabel: "Postmark Server Token",
			EnvVar:     "POSTMARK_SERVER_TOKEN",
			SSMKey:     "email/postmark_server_token",
			ParamType:  ParamSecureString,
			Prompt: `1. Go to Postmark > Servers > (server) > API Tokens.
   2. Copy the Server API token.
   3. Paste it here:`,
			ValidateFn: v.ValidatePostmarkToken,
			IsSecret:   true,
			Phase:      "Email",
		},
		{
			HumanLabel: "Sender Address",
			EnvVar:     "EMAIL_FROM_ADDRESS",
			SSMKey:     "email/from_address",
			ParamType:  ParamString,
			Prompt:     `Enter the verified sender signature used for introduction emails (e.g. intro@recruit.soccer):`,
			ValidateFn: v.ValidateEmailAddress,
			Phase:      "Email",
		},
		{
			HumanLabel: "Sender Display Name",
			EnvVar:     "EMAIL_FROM_NAME",
			SSMKey:     "email/from_name",
			ParamType:  ParamString,
			Prompt:     `Enter the default sender display name (leave empty to keep "Recruit Fluency"):`,
			Optional:   true,
			Phase:      "Email",
		},
		{
			HumanLabel: "Photo Base URL",
			EnvVar:     "PHOTO_BASE_URL",
			SSMKey:     "media/photo_base_url",
			ParamType:  ParamString,
			Prompt:     `Enter the public base URL athlete photo paths are joined to (e.g. https://storage.googleapis.com/rf-photos/):`,
			ValidateFn: v.ValidateHTTPURL,
			Phase:      "Media",
		},
	}
}

// BootstrapRunner walks the inventory against one environment.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// one scanner for the whole session; separate scanners would each
	// buffer ahead and lose input
	scanner *bufio.Scanner

	inventoryOverride []BootstrapStep
	results           []stepResult
}

func NewBootstrapRunner(bctx *BootstrapContext) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(bctx),
		Validator: NewValidator(),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
	}
}

func (r *BootstrapRunner) inventory() []BootstrapStep {
	if r.inventoryOverride != nil {
		return r.inventoryOverride
	}
	return BuildInventory(r.Validator)
}

// Run processes every step and prints a summary. The first hard failure
// aborts the run; parameters already written stay written.
func (r *BootstrapRunner) Run(ctx context.Context) error {
	steps := r.inventory()
	r.results = r.results[:0]

	var phase string
	for i, step := range steps {
		if step.Phase != phase {
			phase = step.Phase
			fmt.Fprintf(r.Stderr, "\n============================================================\n")
			fmt.Fprintf(r.Stderr, "  %s\n", phase)
			fmt.Fprintf(r.Stderr, "============================================================\n")
		}
		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(steps), step.HumanLabel)

		res, err := r.processStep(ctx, step)
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.HumanLabel, err)
		}
		r.results = append(r.results, res)
	}

	r.printSummary()
	return nil
}

type stepAction string

const (
	actionWritten     stepAction = "written"
	actionOverwritten stepAction = "overwritten"
	actionSkipped     stepAction = "skipped"
	actionKept        stepAction = "kept"
)

type stepResult struct {
	Label  string
	EnvVar string
	Path   string
	Action stepAction
}

// present reports whether the parameter exists in SSM after the run.
func (s stepResult) present() bool {
	return s.Action != actionSkipped
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMKey)
	res := stepResult{Label: step.HumanLabel, EnvVar: step.EnvVar, Path: path}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return res, err
	}
	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		overwrite, err := r.askChoice("  [K]eep or [O]verwrite? ", "k", "o")
		if err != nil {
			return res, fmt.Errorf("reading keep/overwrite choice: %w", err)
		}
		if overwrite == "k" {
			fmt.Fprintln(r.Stderr, "  Kept.")
			res.Action = actionKept
			return res, nil
		}
	}

	value, err := r.promptAndValidate(ctx, step)
	if errors.Is(err, errSkipped) {
		fmt.Fprintln(r.Stderr, "  Skipped.")
		res.Action = actionSkipped
		if exists {
			res.Action = actionKept
		}
		return res, nil
	}
	if err != nil {
		return res, err
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return res, err
	}

	res.Action = actionWritten
	if exists {
		res.Action = actionOverwritten
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return res, nil
}

func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; {
		var (
			input string
			err   error
		)
		if step.IsSecret {
			input, err = r.readSecretInput("  > ")
		} else {
			input, err = r.readInput("  > ")
		}
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.HumanLabel, err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			if step.Optional {
				return "", errSkipped
			}
			choice, err := r.askChoice("  No input received. [S]kip this parameter or [R]etry? ", "s", "r")
			if err != nil {
				return "", fmt.Errorf("reading skip/retry choice for %s: %w", step.HumanLabel, err)
			}
			if choice == "s" {
				return "", errSkipped
			}
			continue
		}

		// never echo secrets
		if step.IsSecret {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}

		if step.ValidateFn == nil {
			return input, nil
		}
		vr := step.ValidateFn(ctx, input)
		if vr.Valid {
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
			return input, nil
		}
		fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
		if attempt < maxRetries {
			fmt.Fprintf(r.Stderr, "  Try again (%d/%d).\n", attempt, maxRetries)
		}
		attempt++
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.HumanLabel)
}

func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *BootstrapRunner) readInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)
	return r.scanLine()
}

// readSecretInput disables echo when stdin is a terminal and falls back to
// line reading for piped input.
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(secret), nil
	}
	return r.scanLine()
}

// askChoice loops until the operator types one of the two single-letter
// options (or the word starting with it).
func (r *BootstrapRunner) askChoice(prompt, a, b string) (string, error) {
	for {
		fmt.Fprint(r.Stderr, prompt)
		line, err := r.scanLine()
		if err != nil {
			return "", err
		}
		choice := strings.ToLower(strings.TrimSpace(line))
		switch {
		case choice != "" && strings.HasPrefix(choice, a):
			return a, nil
		case choice != "" && strings.HasPrefix(choice, b):
			return b, nil
		}
		fmt.Fprintf(r.Stderr, "  Please enter '%s' or '%s'.\n", strings.ToUpper(a), strings.ToUpper(b))
	}
}

func (r *BootstrapRunner) printSummary() {
	counts := map[stepAction]int{}

	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	for _, res := range r.results {
		counts[res.Action]++
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(string(res.Action))+"]", res.Label)
	}
	fmt.Fprintf(r.Stderr, "------------------------------------------------------------\n")
	fmt.Fprintf(r.Stderr, "  Written: %d | Overwritten: %d | Kept: %d | Skipped: %d\n",
		counts[actionWritten], counts[actionOverwritten], counts[actionKept], counts[actionSkipped])
	fmt.Fprintf(r.Stderr, "============================================================\n\n")
}

// PrintPointers writes one VAR_SSM_PARAM=path line per parameter present in
// SSM, ready to paste into the Lambda environment.
func (r *BootstrapRunner) PrintPointers(out io.Writer) {
	for _, res := range r.results {
		if !res.present() {
			continue
		}
		fmt.Fprintf(out, "%s_SSM_PARAM=%s\n", res.EnvVar, res.Path)
	}
}
