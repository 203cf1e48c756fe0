package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"chess-unwinnability/engine"
)

const corpusFile = "testdata/positions.txt"

type options struct {
	runTests     bool
	hideWinnable bool
	quick        bool
	min          bool
	timeout      bool
	limit        uint64
}

func parseOptions(args []string) (options, error) {
	opts := options{limit: 500000}

	opts.runTests = slices.Contains(args, "test")
	opts.hideWinnable = slices.Contains(args, "-u")
	opts.quick = slices.Contains(args, "-quick")
	opts.min = slices.Contains(args, "-min")
	opts.timeout = slices.Contains(args, "-timeout")

	if opts.quick && opts.min {
		return opts, fmt.Errorf("-quick and -min are incompatible")
	}

	if i := slices.Index(args, "-limit"); i >= 0 {
		if i+1 >= len(args) {
			return opts, fmt.Errorf("-limit requires a value")
		}
		n, err := strconv.ParseUint(args[i+1], 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid -limit value %q", args[i+1])
		}
		opts.limit = n
	}

	return opts, nil
}

// parseQuery splits an input line into its FEN and the intended winner. The
// winner defaults to the player who just moved.
func parseQuery(line string) (*engine.Position, engine.Color, error) {
	var fenTokens []string
	winnerToken := ""

	for _, token := range strings.Fields(line) {
		if token == "white" || token == "black" {
			winnerToken = token
			break
		}
		fenTokens = append(fenTokens, token)
	}

	pos, err := engine.NewPosition(strings.Join(fenTokens, " "))
	if err != nil {
		return nil, engine.White, err
	}

	switch winnerToken {
	case "white":
		return pos, engine.White, nil
	case "black":
		return pos, engine.Black, nil
	}
	return pos, pos.SideToMove().Other(), nil
}

func analyze(pos *engine.Position, search *engine.Search, opts options) engine.SearchResult {
	switch {
	case opts.quick:
		return engine.QuickAnalysis(pos, search)
	case opts.min:
		return engine.FindShortest(pos, search)
	}
	return engine.FullAnalysis(pos, search)
}

// report prints the one-line verdict for a query, honoring the output flags.
func report(line string, search *engine.Search, result engine.SearchResult,
	elapsed time.Duration, opts options) {

	if opts.timeout {
		verdict := "1/2-1/2"
		if result != engine.Unwinnable {
			if search.Winner() == engine.White {
				verdict = "1-0"
			} else {
				verdict = "0-1"
			}
		}
		fmt.Printf("%s nodes %d time %d (%s)\n",
			verdict, search.Nodes(), elapsed.Milliseconds(), line)
		return
	}

	if result == engine.Winnable {
		if opts.hideWinnable || opts.quick {
			return
		}
		var sb strings.Builder
		sb.WriteString("winnable")
		for _, m := range search.MateSequence() {
			sb.WriteString(" ")
			sb.WriteString(m.String())
		}
		sb.WriteString("#")
		fmt.Printf("%s nodes %d time %d (%s)\n",
			sb.String(), search.Nodes(), elapsed.Milliseconds(), line)
		return
	}

	if result == engine.Undetermined && opts.quick {
		return
	}

	fmt.Printf("%s nodes %d time %d (%s)\n",
		result, search.Nodes(), elapsed.Milliseconds(), line)
}

func repl(opts options) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			break
		}

		pos, winner, err := parseQuery(line)
		if err != nil {
			fmt.Printf("undetermined nodes 0 time 0 (%s)\n", line)
			continue
		}

		search := engine.NewSearch(winner)
		search.SetLimit(opts.limit)

		start := time.Now()
		result := analyze(pos, search, opts)
		report(line, search, result, time.Since(start), opts)
	}
}

// runCorpus analyzes the bundled corpus for both intended winners and reports
// expectation mismatches. Every worker owns its Search (and with it its
// transposition table), keeping the core single-threaded per analysis.
func runCorpus(opts options) error {
	data, err := os.ReadFile(corpusFile)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	failures := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		for f := range failures {
			fmt.Println(f)
		}
		close(done)
	}()

	total := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Lines read `<EXPECT> <FEN>`, EXPECT being two characters: 'W' or
		// '-' for White, 'B' or '-' for Black.
		expected, fen, found := strings.Cut(line, " ")
		if !found || len(expected) != 2 {
			continue
		}
		total++

		line := line
		g.Go(func() error {
			for _, winner := range []engine.Color{engine.White, engine.Black} {
				pos, err := engine.NewPosition(fen)
				if err != nil {
					failures <- fmt.Sprintf("bad FEN: %s", line)
					return nil
				}

				search := engine.NewSearch(winner)
				search.SetLimit(opts.limit)
				result := engine.FullAnalysis(pos, search)

				expectWinnable := expected[0] == 'W'
				if winner == engine.Black {
					expectWinnable = expected[1] == 'B'
				}

				if (result == engine.Unwinnable && expectWinnable) ||
					(result == engine.Winnable && !expectWinnable) {
					failures <- fmt.Sprintf("Test failed! %s %s -> %s", line, winner, result)
				}
			}
			return nil
		})
	}

	err = g.Wait()
	close(failures)
	<-done

	fmt.Printf("analyzed %d positions\n", total)
	return err
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opts.runTests {
		if err := runCorpus(opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	repl(opts)
}
