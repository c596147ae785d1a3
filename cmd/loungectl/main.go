// Command loungectl signs and submits ratings, sends passwd hook
// deliveries, reads the leaderboard and creates players out of band.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	app "github.com/okian/lounge/internal/app"
	"github.com/okian/lounge/internal/client"
	"github.com/okian/lounge/internal/config"
	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/internal/domain/signature"
	"github.com/okian/lounge/pkg/logger"
)

// Globals are flags shared by every command.
type Globals struct {
	URL          string `help:"Lounge server base URL." default:"http://localhost:5000" env:"LOUNGE_URL"`
	APISecret    string `help:"Secret for /api/update signatures." env:"LOUNGE_API_SECRET,API_SECRET"`
	PasswdSecret string `help:"Secret for /api/passwd signatures." env:"LOUNGE_PASSWD_SECRET,PASS_SECRET"`
	Debug        bool   `help:"Whether to enable debug logging."`
}

// CLI is the command grammar.
type CLI struct {
	Globals

	Submit       SubmitCmd       `cmd:"" help:"Submit new ratings as NAME=MMR pairs, applied in order."`
	Passwd       PasswdCmd       `cmd:"" help:"Send a file as a signed passwd hook delivery."`
	Leaderboard  LeaderboardCmd  `cmd:"" help:"Print every player."`
	CreatePlayer CreatePlayerCmd `cmd:"" help:"Create a player directly in the configured store."`
	Sign         SignCmd         `cmd:"" help:"Print the signature of a file."`
}

// SubmitCmd posts one update batch.
type SubmitCmd struct {
	Pairs []string `arg:"" name:"pair" help:"NAME=MMR; repeat for more items."`
}

func (c *SubmitCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	items, err := parsePairs(c.Pairs)
	if err != nil {
		return err
	}
	cl, err := client.New(g.URL, client.WithUpdateSecret(g.APISecret))
	if err != nil {
		return err
	}
	resp, err := cl.SubmitUpdate(ctx, items)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s (batch %s)\n", resp.Message, resp.BatchID)
	return err
}

// PasswdCmd posts a file to the passwd hook.
type PasswdCmd struct {
	File  string `arg:"" type:"existingfile" help:"Payload file, sent byte for byte."`
	Event string `help:"Value of the event header." default:"push"`
}

func (c *PasswdCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	body, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	cl, err := client.New(g.URL, client.WithPasswdSecret(g.PasswdSecret))
	if err != nil {
		return err
	}
	id, err := cl.SendWebhook(ctx, c.Event, body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "delivered %s\n", id)
	return err
}

// LeaderboardCmd prints players by descending MMR.
type LeaderboardCmd struct {
	JSON bool `help:"Print raw JSON instead of a table."`
}

func (c *LeaderboardCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	cl, err := client.New(g.URL)
	if err != nil {
		return err
	}
	players, err := cl.Leaderboard(ctx)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(players)
	}

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].MMR != players[j].MMR {
			return players[i].MMR > players[j].MMR
		}
		return players[i].Name < players[j].Name
	})
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tNAME\tMMR\tW\tL")
	for i, p := range players {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", i+1, p.Name, p.MMR, p.Wins, p.Losses)
	}
	return tw.Flush()
}

// CreatePlayerCmd inserts a player through the server's store configuration.
type CreatePlayerCmd struct {
	Name string `arg:"" help:"Player name."`
	MMR  int64  `help:"Starting rating." default:"0"`
}

func (c *CreatePlayerCmd) Run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(ctx) }()

	if err := store.Create(ctx, model.Player{Name: c.Name, MMR: c.MMR, History: []int64{}}); err != nil {
		return fmt.Errorf("create %q: %w", c.Name, err)
	}
	_, err = fmt.Fprintf(out, "created %s at %d in %s store\n", c.Name, c.MMR, cfg.StoreBackend)
	return err
}

// SignCmd prints a signature without sending anything.
type SignCmd struct {
	Mode string `help:"raw (passwd hook) or string (update batch)." enum:"raw,string" default:"string"`
	File string `arg:"" type:"existingfile" help:"Body file."`
}

func (c *SignCmd) Run(g *Globals, out io.Writer) error {
	mode, err := signature.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	secret := g.APISecret
	if mode == signature.RawBody {
		secret = g.PasswdSecret
	}
	v, err := signature.NewVerifier([]byte(secret), mode)
	if err != nil {
		return err
	}
	body, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	sig, err := v.SignJSON(body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, sig)
	return err
}

// parsePairs turns NAME=MMR arguments into update items. The last '=' splits,
// so names may contain '='.
func parsePairs(pairs []string) ([]model.UpdateItem, error) {
	items := make([]model.UpdateItem, 0, len(pairs))
	for _, pair := range pairs {
		i := strings.LastIndex(pair, "=")
		if i <= 0 {
			return nil, fmt.Errorf("%q: want NAME=MMR", pair)
		}
		mmr, err := strconv.ParseInt(pair[i+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: mmr: %w", pair, err)
		}
		items = append(items, model.UpdateItem{Name: pair[:i], MMR: mmr})
	}
	return items, nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("loungectl"),
		kong.Description("operator tool for the lounge MMR service"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser, err := newParser(&cli,
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(io.Writer(os.Stdout), (*io.Writer)(nil)),
	)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := logger.Init(); err != nil {
		parser.FatalIfErrorf(err)
	}
	if cli.Debug {
		_ = logger.SetLevelString("debug")
	}

	err = kctx.Run(&cli.Globals)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code == "player_not_found" {
		err = fmt.Errorf("%w (create it with loungectl create-player)", err)
	}
	kctx.FatalIfErrorf(err)
}
