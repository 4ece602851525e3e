package reconciler

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ledger-reconciler/internal/models"
)

// Decision is the confirmation gate's verdict for one record
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionSkip
	DecisionAcceptAll
	DecisionSkipAll
	DecisionQuit
)

// ConfirmFunc decides whether one accept candidate enters the ledger.
// Index and total describe the candidate's position in this run's queue.
type ConfirmFunc func(record *models.StandardRecord, index, total int) (Decision, error)

// ConsoleConfirm returns a ConfirmFunc prompting on out and reading
// single-letter answers from in: Y (or enter) accepts, n skips, a accepts
// everything from here on, s skips everything, q quits the run.
func ConsoleConfirm(in io.Reader, out io.Writer) ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(record *models.StandardRecord, index, total int) (Decision, error) {
		fmt.Fprintf(out, "[%d/%d] %s  %s  %s  %s  %s\n",
			index, total,
			record.Timestamp.Format("2006-01-02 15:04"),
			record.Sheet, record.Account,
			record.Amount.StringFixed(2), record.Remark)
		fmt.Fprint(out, "accept? [Y/n/a/s/q] ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			// EOF on stdin means no operator; stop rather than guess
			return DecisionQuit, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y":
			return DecisionAccept, nil
		case "n":
			return DecisionSkip, nil
		case "a":
			return DecisionAcceptAll, nil
		case "s":
			return DecisionSkipAll, nil
		case "q":
			return DecisionQuit, nil
		default:
			fmt.Fprintln(out, "unrecognized answer, skipping record")
			return DecisionSkip, nil
		}
	}
}
