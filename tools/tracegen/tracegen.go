// © 2026 robinstat authors. MIT License.

package main

// tracegen is a tiny helper utility to generate deterministic synthetic
// speculation-trace event streams for standalone benchmarking of the stats
// aggregator (outside `go test`). It emits newline-delimited JSON objects,
// one per trace event, which an external load generator can replay.
//
// Usage:
//
//	go run ./tools/tracegen -n 1000000 -funcs 200 -dist=zipf -seed=42 -out trace.jsonl
//
// Flags:
//
//	-n       number of ENTRY/RETURN call pairs to generate (default 1e5)
//	-funcs   number of distinct synthetic function identities (default 200)
//	-dist    distribution over function ids: "uniform" or "zipf" (default uniform)
//	-zipfs   Zipf s parameter (>1)  (default 1.2)
//	-zipfv   Zipf v parameter (>=1) (default 1.0)
//	-seed    RNG seed (default 1)
//	-out     output file (default stdout)
//
// The program is embarrassingly simple but placed under version control so
// any contributor can regenerate the exact trace used in a performance
// regression hunt.

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/Voskan/robinstat/pkg/speshstats"
)

type traceLine struct {
	Kind           string `json:"kind"`
	ThreadCtx      uint64 `json:"thread_ctx"`
	Cid            uint64 `json:"cid"`
	Sf             string `json:"sf,omitempty"`
	CallsiteIdx    int32  `json:"callsite_idx,omitempty"`
	ArgCount       int32  `json:"arg_count,omitempty"`
	ParamIndex     int32  `json:"param_index,omitempty"`
	Type           string `json:"type,omitempty"`
	BytecodeOffset int32  `json:"bytecode_offset,omitempty"`
	HasType        bool   `json:"has_type,omitempty"`
}

func main() {
	var (
		n       = flag.Int("n", 100_000, "number of call pairs to generate")
		funcs   = flag.Int("funcs", 200, "number of distinct synthetic function identities")
		dist    = flag.String("dist", "uniform", "distribution over function ids: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = flag.Int64("seed", 1, "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var pickFunc func() int
	switch *dist {
	case "uniform":
		pickFunc = func() int { return rnd.Intn(*funcs) }
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1.0 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, uint64(*funcs-1))
		pickFunc = func() int { return int(z.Uint64()) }
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()
	enc := json.NewEncoder(w)

	types := []string{"Int", "Str", "Num", "P6opaque"}
	for i := 0; i < *n; i++ {
		cid := uint64(i)
		sf := fmt.Sprintf("func%d", pickFunc())
		ty := types[rnd.Intn(len(types))]

		emit(enc, traceLine{Kind: speshstats.EventEntry.String(), Cid: cid, Sf: sf, CallsiteIdx: 0, ArgCount: 1})
		emit(enc, traceLine{Kind: speshstats.EventParameter.String(), Cid: cid, ParamIndex: 0, Type: ty})
		emit(enc, traceLine{Kind: speshstats.EventType.String(), Cid: cid, BytecodeOffset: 4, Type: ty})
		emit(enc, traceLine{Kind: speshstats.EventReturn.String(), Cid: cid, BytecodeOffset: 8, Type: ty, HasType: true})
	}
}

func emit(enc *json.Encoder, l traceLine) {
	if err := enc.Encode(l); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(1)
	}
}
