package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sdejongh/foldermirror/pkg/scheduler"
)

const usageLine = "Usage: foldermirror <source> <replica> <logfile> <interval-seconds>"

// Params are the four run parameters
type Params struct {
	Source   string
	Replica  string
	LogFile  string
	Interval time.Duration
}

// paramsFromArgs reads the positional form. An invalid interval is final.
func paramsFromArgs(args []string) (Params, error) {
	if len(args) != 4 {
		return Params{}, fmt.Errorf("expected 4 arguments, got %d", len(args))
	}

	interval, err := scheduler.ParseInterval(args[3])
	if err != nil {
		return Params{}, fmt.Errorf("invalid sync interval: %w", err)
	}

	return Params{
		Source:   args[0],
		Replica:  args[1],
		LogFile:  args[2],
		Interval: interval,
	}, nil
}

// Prompter asks for missing parameters one line at a time
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter reading answers from in
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prints label and returns the trimmed answer, or def for an empty one
func (p *Prompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return "", fmt.Errorf("no answer for %q: input closed", label)
		}
		return "", err
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		answer = def
	}
	return answer, nil
}

// askRequired repeats the question until a non-empty answer is given
func (p *Prompter) askRequired(label string) (string, error) {
	for {
		answer, err := p.Ask(label, "")
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
	}
}

// Params asks for all four parameters. The interval question is repeated
// until a positive number of seconds is given; defaultInterval, when
// positive, is the answer used for an empty line.
func (p *Prompter) Params(defaultInterval float64) (Params, error) {
	var params Params
	var err error

	if params.Source, err = p.askRequired("Enter Source Path"); err != nil {
		return Params{}, err
	}
	if params.Replica, err = p.askRequired("Enter Replica Path"); err != nil {
		return Params{}, err
	}
	if params.LogFile, err = p.askRequired("Enter Log File Path"); err != nil {
		return Params{}, err
	}

	def := ""
	if defaultInterval > 0 {
		def = strconv.FormatFloat(defaultInterval, 'f', -1, 64)
	}
	for {
		answer, err := p.Ask("Enter Sync Interval in Seconds", def)
		if err != nil {
			return Params{}, err
		}
		if params.Interval, err = scheduler.ParseInterval(answer); err == nil {
			return params, nil
		}
		fmt.Fprintln(p.out, "Invalid sync interval. Please provide a valid number of seconds.")
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
