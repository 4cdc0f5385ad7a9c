package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"smartport-go/services/vdml"
	"smartport-go/services/vdml/claim"
	"smartport-go/services/vdml/devices/usd"
	"smartport-go/types"
)

var scriptCmd = &cobra.Command{
	Use:   "script <file>",
	Short: "Run port operations from a file (- for stdin)",
	Long: `Each line is one command, tokenised like a shell line. '#' starts a comment.

  plug <port> <type> [key=value ...]   unplug <port>
  claim <port> <type>                  release <port>
  gps <port> <op> [args]               imu <port> <op> [args]
  usd ls [path]                        ports

  gps ops include feed "<nmea sentence>".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctl, err := vdml.NewFromConfig(cfg, vdml.WithLogger(newLogger(cmd, cfg)))
		if err != nil {
			return err
		}
		defer ctl.Close()

		in := io.Reader(os.Stdin)
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		keepGoing, _ := cmd.Flags().GetBool("keep-going")
		r := newRunner(ctl, usd.New(cfg.USD.Root), cmd.OutOrStdout())
		defer r.releaseAll()
		return r.Run(cmd.Context(), in, keepGoing)
	},
}

func init() {
	scriptCmd.Flags().Bool("keep-going", false, "report failing lines and continue")
	rootCmd.AddCommand(scriptCmd)
}

// runner executes script lines against a controller. Claims taken with
// "claim" stay held until "release" or the end of the script.
type runner struct {
	ctl  *vdml.Controller
	card *usd.Card
	out  io.Writer
	held map[int]*claim.Token
}

func newRunner(ctl *vdml.Controller, card *usd.Card, out io.Writer) *runner {
	return &runner{ctl: ctl, card: card, out: out, held: map[int]*claim.Token{}}
}

func (r *runner) Run(ctx context.Context, in io.Reader, keepGoing bool) error {
	sc := bufio.NewScanner(in)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := r.Exec(ctx, sc.Text()); err != nil {
			err = fmt.Errorf("line %d: %w", lineNo, err)
			if !keepGoing {
				return err
			}
			fmt.Fprintln(r.out, "error:", err)
		}
	}
	return sc.Err()
}

func (r *runner) releaseAll() {
	for p, tok := range r.held {
		tok.Release()
		delete(r.held, p)
	}
}

// Exec runs one line. Blank and comment lines are ignored.
func (r *runner) Exec(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "ports":
		return printPorts(r.out, r.ctl.Snapshot(), len(args) > 0 && args[0] == "all")
	case "usd":
		return r.usd(args)
	}

	if len(args) == 0 {
		return fmt.Errorf("%s: missing port", cmd)
	}
	port, err := parsePort(args[0])
	if err != nil {
		return err
	}
	args = args[1:]

	switch cmd {
	case "plug":
		if len(args) == 0 {
			return fmt.Errorf("plug: missing type")
		}
		t, err := parseType(args[0])
		if err != nil {
			return err
		}
		params, err := parseParams(args[1:])
		if err != nil {
			return err
		}
		return r.ctl.Plug(port, t, params)
	case "unplug":
		return r.ctl.Unplug(port)
	case "claim":
		if len(args) == 0 {
			return fmt.Errorf("claim: missing type")
		}
		t, err := parseType(args[0])
		if err != nil {
			return err
		}
		tok, err := r.ctl.Guard().TryClaim(ctx, claim.Port(uint8(port)), t)
		if err != nil {
			return err
		}
		r.held[port] = tok
		fmt.Fprintf(r.out, "claimed port %d token %s\n", port, tok.ID())
		return nil
	case "release":
		tok, ok := r.held[port]
		if !ok {
			return fmt.Errorf("release: port %d not claimed by this script", port)
		}
		tok.Release()
		delete(r.held, port)
		return nil
	case "gps":
		return r.gps(ctx, uint8(port), args)
	case "imu":
		return r.imu(ctx, uint8(port), args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (r *runner) usd(args []string) error {
	if len(args) == 0 || args[0] != "ls" {
		return fmt.Errorf("usd: want 'usd ls [path]'")
	}
	path := usd.MountPrefix
	if len(args) > 1 {
		path = args[1]
	}
	buf := make([]byte, 4096)
	if _, err := r.card.ListFiles(path, buf); err != nil {
		return err
	}
	if i := strings.IndexByte(string(buf), 0); i > 0 {
		fmt.Fprintln(r.out, string(buf[:i]))
	}
	return nil
}

func (r *runner) gps(ctx context.Context, port uint8, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("gps: missing op")
	}
	c := r.ctl.GPS()
	op, f := args[0], args[1:]
	switch op {
	case "heading":
		return r.printFloat(c.GetHeading(ctx, port))
	case "heading-raw":
		return r.printFloat(c.GetHeadingRaw(ctx, port))
	case "error":
		return r.printFloat(c.GetError(ctx, port))
	case "position":
		return r.printValue(c.GetPosition(ctx, port))
	case "status":
		return r.printValue(c.GetPositionAndOrientation(ctx, port))
	case "offset":
		if len(f) == 0 {
			return r.printValue(c.GetOffset(ctx, port))
		}
		v, err := floats(f, 2)
		if err != nil {
			return err
		}
		return r.printInt(c.SetOffset(ctx, port, v[0], v[1]))
	case "set-position":
		v, err := floats(f, 3)
		if err != nil {
			return err
		}
		return r.printInt(c.SetPosition(ctx, port, v[0], v[1], v[2]))
	case "rate":
		v, err := floats(f, 1)
		if err != nil {
			return err
		}
		return r.printInt(c.SetDataRate(ctx, port, uint32(v[0])))
	case "feed":
		if len(f) != 1 {
			return fmt.Errorf("gps feed: want one sentence, got %d args", len(f))
		}
		return r.printInt(c.Feed(ctx, port, f[0]))
	}
	return fmt.Errorf("gps: unknown op %q", op)
}

func (r *runner) imu(ctx context.Context, port uint8, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("imu: missing op")
	}
	c := r.ctl.IMU()
	op, f := args[0], args[1:]
	switch op {
	case "reset":
		blocking := len(f) > 0 && f[0] == "blocking"
		return r.printInt(c.Reset(ctx, port, blocking))
	case "heading":
		return r.printFloat(c.GetHeading(ctx, port))
	case "rotation":
		return r.printFloat(c.GetRotation(ctx, port))
	case "euler":
		return r.printValue(c.GetEuler(ctx, port))
	case "status":
		st, err := c.GetStatus(ctx, port)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "status=%#x calibrating=%t\n", uint32(st), st.Calibrating())
		return nil
	case "tare":
		return r.printInt(c.Tare(ctx, port))
	case "set-heading":
		v, err := floats(f, 1)
		if err != nil {
			return err
		}
		return r.printInt(c.SetHeading(ctx, port, v[0]))
	}
	return fmt.Errorf("imu: unknown op %q", op)
}

func (r *runner) printFloat(v float64, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, strconv.FormatFloat(v, 'f', -1, 64))
	return nil
}

func (r *runner) printInt(v int32, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, v)
	return nil
}

func (r *runner) printValue(v any, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%+v\n", v)
	return nil
}

func parsePort(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 255 {
		return 0, fmt.Errorf("bad port %q", s)
	}
	return n, nil
}

func parseType(s string) (types.DeviceType, error) {
	t, ok := types.ParseDeviceType(s)
	if !ok {
		return types.DeviceNone, &types.UnknownDeviceTypeError{Name: s}
	}
	return t, nil
}

// parseParams turns key=value pairs into a params map; values stay strings
// and are converted by the device builder.
func parseParams(kv []string) (map[string]any, error) {
	if len(kv) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(kv))
	for _, p := range kv {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad param %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}
