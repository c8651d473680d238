package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"

	"tpsdb"
)

type globals struct {
	Password string `help:"Password for encrypted files." short:"p"`
	Check    bool   `help:"Fail on consistency errors instead of warning." short:"c"`
	Debug    bool   `help:"Verbose logging."`
}

func (g *globals) open(path, table string) (*tpsdb.TPS, error) {
	return tpsdb.Open(path, &tpsdb.Options{
		Password:     g.Password,
		Check:        g.Check,
		CurrentTable: table,
	})
}

type tablesCmd struct {
	File string `arg:"" help:"TPS file." type:"existingfile"`
}

func (c *tablesCmd) Run(g *globals) error {
	t, err := g.open(c.File, "")
	if err != nil {
		return err
	}
	defer t.Close()
	for _, n := range t.Tables().GetNumbers() {
		tbl, _ := t.Tables().Get(n)
		state := "incomplete"
		if tbl.IsComplete() {
			state = "complete"
		}
		fmt.Printf("%4d  %-32s %s\n", n, tbl.Name, state)
	}
	return nil
}

type schemaCmd struct {
	File  string `arg:"" help:"TPS file." type:"existingfile"`
	Table string `arg:"" help:"Table name."`
}

func (c *schemaCmd) Run(g *globals) error {
	t, err := g.open(c.File, "")
	if err != nil {
		return err
	}
	defer t.Close()
	n, ok := t.Tables().GetNumber(c.Table)
	if !ok {
		return fmt.Errorf("no table named %q", c.Table)
	}
	tbl, _ := t.Tables().Get(n)
	def := tbl.Definition()
	fmt.Printf("table %d %s: %d definition bytes\n", n, tbl.Name, len(def))
	fmt.Print(hex.Dump(def))
	return nil
}

type dumpCmd struct {
	File     string `arg:"" help:"TPS file." type:"existingfile"`
	Table    string `arg:"" help:"Table name."`
	Output   string `help:"Output path (default stdout)." short:"o"`
	Compress string `help:"Compress output." enum:"none,snappy,lz4" default:"none"`
}

// Dump output framing: per row, a little-endian u32 row id and u32
// length followed by the raw record bytes; the whole stream optionally
// compressed.
func (c *dumpCmd) Run(g *globals) error {
	t, err := g.open(c.File, c.Table)
	if err != nil {
		return err
	}
	defer t.Close()
	rows, err := t.Rows(nil)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	var hdr [8]byte
	for {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(hdr[0:], row.ID)
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(row.Data)))
		out.Write(hdr[:])
		out.Write(row.Data)
	}
	data := out.Bytes()
	comp, _, err := tpsdb.Codec(c.Compress)
	if err != nil {
		return err
	}
	if comp != nil {
		if data, err = comp(data); err != nil {
			return err
		}
	}
	w := io.Writer(os.Stdout)
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err = w.Write(data)
	return err
}

type cli struct {
	globals

	Tables tablesCmd `cmd:"" help:"List tables and their catalog state."`
	Schema schemaCmd `cmd:"" help:"Show a table's raw definition."`
	Dump   dumpCmd   `cmd:"" help:"Dump a table's data records."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("tpsdb"),
		kong.Description("Read Clarion TopSpeed (.tps) database files."),
		kong.UsageOnError(),
	)
	if c.Debug {
		log.SetLevel(log.DebugLevel)
	}
	ctx.FatalIfErrorf(ctx.Run(&c.globals))
}
