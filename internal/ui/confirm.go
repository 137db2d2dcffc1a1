package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/contentops/slotfill/pkg/types"
)

var (
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#98C379"))
)

// batchPreview is how many assignment lines a batch prompt shows
const batchPreview = 5

// ConfirmationResult represents the result of a confirmation prompt
type ConfirmationResult struct {
	Approved bool
	TimedOut bool
	Error    error
}

// Confirmer handles user confirmation prompts
type Confirmer struct {
	config types.Confirmation
	in     io.Reader
	out    io.Writer
}

// NewConfirmer creates a confirmer reading stdin and writing prompts to stderr
func NewConfirmer(config types.Confirmation) *Confirmer {
	return NewConfirmerWithIO(config, os.Stdin, os.Stderr)
}

// NewConfirmerWithIO creates a confirmer over the given reader and writer
func NewConfirmerWithIO(config types.Confirmation, in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{
		config: config,
		in:     in,
		out:    out,
	}
}

// Confirm prompts the user for confirmation with the given message
func (c *Confirmer) Confirm(ctx context.Context, message string) *ConfirmationResult {
	// In batch mode or with auto-approve, skip confirmation
	if c.config.BatchMode || c.config.AutoApprove {
		return &ConfirmationResult{
			Approved: !c.config.DefaultDeny,
		}
	}

	return c.promptUser(ctx, message)
}

// ConfirmOperation prompts for confirmation of a specific operation
func (c *Confirmer) ConfirmOperation(ctx context.Context, operation, resource string, details map[string]any) *ConfirmationResult {
	return c.Confirm(ctx, c.buildOperationMessage(operation, resource, details))
}

// ConfirmAssignments asks before writing a planned batch to a page. When
// filled slots would be overwritten the prompt defaults to deny, also in
// batch mode unless auto-approve is set.
func (c *Confirmer) ConfirmAssignments(ctx context.Context, page types.Page, lines []string, overwrites int) *ConfirmationResult {
	if len(lines) == 0 {
		return &ConfirmationResult{Error: fmt.Errorf("no assignments to confirm")}
	}

	title := page.Title
	if title == "" {
		title = fmt.Sprintf("page %d", page.ID)
	}
	if overwrites == 0 {
		return c.ConfirmBatchOperation(ctx, fmt.Sprintf("assignment to '%s'", title), lines)
	}

	config := c.config
	if !config.AutoApprove {
		config.DefaultDeny = true
	}
	message := c.batchMessage(fmt.Sprintf("assignment to '%s'", title), lines)
	message = fmt.Sprintf("%s\n%s", warnStyle.Render(fmt.Sprintf(
		"%d filled slot(s) will be replaced.", overwrites)), message)

	confirmer := &Confirmer{config: config, in: c.in, out: c.out}
	return confirmer.Confirm(ctx, message)
}

// promptUser handles the interactive confirmation prompt
func (c *Confirmer) promptUser(ctx context.Context, message string) *ConfirmationResult {
	var promptCtx context.Context
	var cancel context.CancelFunc

	if c.config.Timeout > 0 {
		promptCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
	} else {
		promptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	responseChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	timeoutMsg := ""
	if c.config.Timeout > 0 {
		timeoutMsg = fmt.Sprintf(" (%v)", c.config.Timeout)
	}
	defaultHint := "[Y/n]"
	if c.config.DefaultDeny {
		defaultHint = "[y/N]"
	}
	fmt.Fprintf(c.out, "%s %s%s ", message, defaultHint, timeoutMsg)

	// The reader goroutine outlives a timed out prompt until the next line arrives.
	go func() {
		reader := bufio.NewReader(c.in)
		response, err := reader.ReadString('\n')
		if err != nil && !(err == io.EOF && response != "") {
			errorChan <- fmt.Errorf("failed to read user input: %w", err)
			return
		}
		responseChan <- strings.TrimSpace(response)
	}()

	select {
	case <-promptCtx.Done():
		fmt.Fprintln(c.out, "\nTimeout - using default response")
		return &ConfirmationResult{
			Approved: !c.config.DefaultDeny,
			TimedOut: true,
		}

	case err := <-errorChan:
		return &ConfirmationResult{
			Approved: false,
			Error:    err,
		}

	case response := <-responseChan:
		return &ConfirmationResult{
			Approved: c.parseResponse(response),
		}
	}
}

// parseResponse parses the user's response to determine approval
func (c *Confirmer) parseResponse(response string) bool {
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return !c.config.DefaultDeny
	}

	switch response {
	case "y", "yes", "true", "1":
		return true
	case "n", "no", "false", "0":
		return false
	default:
		fmt.Fprintf(c.out, "Invalid response '%s', using default\n", response)
		return !c.config.DefaultDeny
	}
}

// buildOperationMessage builds a formatted message for operation confirmation.
// Detail keys are listed in sorted order.
func (c *Confirmer) buildOperationMessage(operation, resource string, details map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Confirm: %s '%s'", operation, resource)

	if len(details) > 0 {
		b.WriteString(" with:")
		keys := make([]string, 0, len(details))
		for key := range details {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "\n  %s: %v", key, details[key])
		}
	}

	b.WriteString("?")
	return b.String()
}

// DisplayWarning displays a warning message to the user
func (c *Confirmer) DisplayWarning(message string) {
	fmt.Fprintln(c.out, warnStyle.Render("WARNING:")+" "+message)
}

// DisplayInfo displays an informational message to the user
func (c *Confirmer) DisplayInfo(message string) {
	fmt.Fprintln(c.out, infoStyle.Render("INFO:")+" "+message)
}

// DisplayError displays an error message to the user
func (c *Confirmer) DisplayError(message string) {
	fmt.Fprintln(c.out, errorStyle.Render("ERROR:")+" "+message)
}

// DisplaySuccess displays a success message to the user
func (c *Confirmer) DisplaySuccess(message string) {
	fmt.Fprintln(c.out, successStyle.Render("SUCCESS:")+" "+message)
}

// ConfirmBatchOperation handles batch operation confirmations
func (c *Confirmer) ConfirmBatchOperation(ctx context.Context, operation string, items []string) *ConfirmationResult {
	if len(items) == 0 {
		return &ConfirmationResult{Error: fmt.Errorf("no items to process")}
	}

	if c.config.BatchMode || c.config.AutoApprove {
		return &ConfirmationResult{Approved: !c.config.DefaultDeny}
	}

	return c.Confirm(ctx, c.batchMessage(operation, items))
}

func (c *Confirmer) batchMessage(operation string, items []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Confirm batch %s for %d items:", operation, len(items))
	for i, item := range items {
		if i >= batchPreview {
			fmt.Fprintf(&b, "\n  ... and %d more", len(items)-batchPreview)
			break
		}
		fmt.Fprintf(&b, "\n  - %s", item)
	}
	b.WriteString("\nProceed?")
	return b.String()
}

// SetConfig updates the confirmer configuration
func (c *Confirmer) SetConfig(config types.Confirmation) {
	c.config = config
}

// GetConfig returns the current confirmer configuration
func (c *Confirmer) GetConfig() types.Confirmation {
	return c.config
}

// IsInteractive returns true if the confirmer is in interactive mode
func (c *Confirmer) IsInteractive() bool {
	return !c.config.BatchMode && !c.config.AutoApprove
}

// ShowProgress displays a progress indicator for long operations
func (c *Confirmer) ShowProgress(current, total int, message string) {
	if c.config.BatchMode || total <= 0 {
		return
	}

	percent := float64(current) / float64(total) * 100
	fmt.Fprintf(c.out, "\r[%3.0f%%] %s (%d/%d)", percent, message, current, total)

	if current == total {
		fmt.Fprintln(c.out)
	}
}
