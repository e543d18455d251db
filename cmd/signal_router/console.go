package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"signalbridge/internal/core"
	"signalbridge/pkg/cli"
)

// dealerAPI is the part of the router the console drives
type dealerAPI interface {
	SendExecution(identity string, signal core.ExecutionSignal) error
	RequestOrdersStatus(identity string, logins []int32) error
	Dealers() []string
}

const consoleHelp = `commands:
  dealers
  open <dealer> <login> <buy|sell> <symbol> <volume>
  close <dealer> <login> <order_id>
  status <dealer> <login>...
  help
  quit`

// Console sends operator commands to connected dealers
type Console struct {
	api     dealerAPI
	in      io.Reader
	out     io.Writer
	comment string
}

func NewConsole(api dealerAPI, in io.Reader, out io.Writer) *Console {
	return &Console{api: api, in: in, out: out, comment: "console"}
}

// Run reads commands until quit, end of input or ctx is done
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, `type "help" for commands`)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			if quit := c.Exec(line); quit {
				return context.Canceled
			}
		}
	}
}

// Exec runs one command line and reports whether the console should stop
func (c *Console) Exec(line string) bool {
	cmd, err := cli.ParseCommand(line)
	if err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return false
	}

	switch cmd.Name {
	case "":
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
	case "dealers":
		fmt.Fprintln(c.out, strings.Join(c.api.Dealers(), " "))
	case "open":
		err = c.open(cmd)
	case "close":
		err = c.close(cmd)
	case "status":
		err = c.status(cmd)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Name)
	}

	if err != nil {
		fmt.Fprintln(c.out, "error:", err)
	}
	return false
}

func (c *Console) open(cmd cli.Command) error {
	if err := cmd.Want(5, "<dealer> <login> <buy|sell> <symbol> <volume>"); err != nil {
		return err
	}
	login, err := cmd.Int32(1)
	if err != nil {
		return err
	}
	var side core.TradeSide
	switch strings.ToLower(cmd.Args[2]) {
	case "buy":
		side = core.Buy
	case "sell":
		side = core.Sell
	default:
		return fmt.Errorf("side must be buy or sell, got %q", cmd.Args[2])
	}
	volume, err := cmd.Float(4)
	if err != nil {
		return err
	}

	return c.api.SendExecution(cmd.Args[0], core.ExecutionSignal{
		Comment: c.comment,
		Orders: []core.ExecutionOrder{{
			Login:      login,
			ActionType: core.Open,
			Side:       side,
			Symbol:     strings.ToUpper(cmd.Args[3]),
			Volume:     volume,
		}},
	})
}

func (c *Console) close(cmd cli.Command) error {
	if err := cmd.Want(3, "<dealer> <login> <order_id>"); err != nil {
		return err
	}
	login, err := cmd.Int32(1)
	if err != nil {
		return err
	}
	orderID, err := cmd.Int32(2)
	if err != nil {
		return err
	}

	return c.api.SendExecution(cmd.Args[0], core.ExecutionSignal{
		Comment: c.comment,
		Orders:  []core.ExecutionOrder{{Login: login, ActionType: core.Close, OrderID: orderID}},
	})
}

func (c *Console) status(cmd cli.Command) error {
	if err := cmd.Want(2, "<dealer> <login>..."); err != nil {
		return err
	}
	logins := make([]int32, 0, len(cmd.Args)-1)
	for i := 1; i < len(cmd.Args); i++ {
		login, err := cmd.Int32(i)
		if err != nil {
			return err
		}
		logins = append(logins, login)
	}
	return c.api.RequestOrdersStatus(cmd.Args[0], logins)
}
