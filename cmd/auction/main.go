// Command auction runs a simulated second-price (Vickrey) sealed-bid
// MPC auction among N parties tolerating F omission faults, over the
// in-process simulated network. Grounded on the teacher's main.go/node.go
// (flag parsing, one-goroutine-per-node orchestration, stdin-driven
// inputs), generalized from an ABA-decision demo to the auction's bid/
// omission/delay parameters per original_source/main.py's seed scenarios.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"secondprice-mpc-auction/beacon"
	"secondprice-mpc-auction/field"
	"secondprice-mpc-auction/network"
	"secondprice-mpc-auction/party"
	"secondprice-mpc-auction/rng"
	"secondprice-mpc-auction/services"
	"secondprice-mpc-auction/utils"
)

func main() {
	n := pflag.Int("n", 4, "number of parties")
	f := pflag.Int("f", 1, "maximum number of omission faults tolerated")
	k := pflag.Int("bitwidth", 16, "bid bit width for bit-decomposition circuits")
	bidsFlag := pflag.String("bids", "", "comma-separated bids, one per party (else read from stdin)")
	omit := pflag.Int("omit", 0, "party ID to simulate as omitting (0 = none)")
	omitProb := pflag.Float64("omit-prob", 1.0, "probability the omitting party's sends are dropped")
	delayMs := pflag.Int("delay-ms", 2, "upper bound (exclusive) of the uniform simulated per-link delay in milliseconds")
	seed := pflag.Int64("seed", 1, "seed for the simulated delay/omission RNG")
	silent := pflag.Bool("silent", false, "disable logs and print only the result")
	pflag.Parse()

	utils.SetupLogger()
	logLevel := zerolog.InfoLevel
	if *silent {
		logLevel = zerolog.Disabled
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
	mainLog := log.With().Str("layer", "MAIN").Logger().Level(logLevel)

	bids, err := readBids(*bidsFlag, *n)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to read bids")
	}
	mainLog.Info().Int("n", *n).Int("f", *f).Ints("bids", bids).Msg("starting second-price auction")

	src := rng.NewSeeded(*seed)
	delay := network.NewUniformDelay(0, time.Duration(*delayMs)*time.Millisecond, src)

	var drop network.DropPolicy
	if *omit > 0 {
		drop = network.NewDropProb(*omit, *omitProb, src)
	}

	net := network.New[network.Envelope](
		network.WithDelay[network.Envelope](delay),
		network.WithDrop[network.Envelope](drop),
		network.WithTypeOf[network.Envelope](func(e network.Envelope) string { return string(e.Type) }),
	)

	beac := beacon.New(*f+1, func() field.Element { return field.RandomFromSource(src.Uint64) })

	parties := make([]*party.Party, *n)
	managers := make([]*services.ServiceManager[network.Envelope, *field.Element], *n)
	cfg := party.Config{N: *n, F: *f, BitWidth: *k}

	for i := 0; i < *n; i++ {
		id := i + 1
		p := party.New(id, cfg, beac, func() field.Element { return field.RandomFromSource(src.Uint64) }, log.Logger.Level(logLevel))
		parties[i] = p
		mgr := services.NewServiceManager[network.Envelope, *field.Element](id, p, net)
		managers[i] = mgr
		net.Register(id, mgr.Inbox())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(*n)
	results := make([]*field.Element, *n)
	for i := 0; i < *n; i++ {
		i := i
		go func() {
			defer wg.Done()
			managers[i].Start()
			if err := parties[i].Run(ctx, managers[i], field.New(int64(bids[i]))); err != nil {
				mainLog.Error().Err(err).Int("party_id", i+1).Msg("party run failed")
				return
			}
			results[i] = parties[i].Result()
		}()
	}
	wg.Wait()

	fmt.Print("RESULTS:")
	for i := 0; i < *n; i++ {
		if results[i] == nil {
			fmt.Print(" -")
			continue
		}
		fmt.Printf(" %s", results[i].String())
	}
	fmt.Println()

	if !*silent {
		mainLog.Info().Msg("auction finished")
	}
}

// readBids parses --bids, or reads N whitespace-separated integers from
// stdin (mirroring the teacher's fmt.Scan input-reading idiom).
func readBids(flagValue string, n int) ([]int, error) {
	if flagValue != "" {
		parts := strings.Split(flagValue, ",")
		if len(parts) != n {
			return nil, fmt.Errorf("expected %d bids, got %d", n, len(parts))
		}
		bids := make([]int, n)
		for i, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			bids[i] = v
		}
		return bids, nil
	}

	bids := make([]int, n)
	for i := 0; i < n; i++ {
		if _, err := fmt.Fscan(os.Stdin, &bids[i]); err != nil {
			return nil, fmt.Errorf("reading bid %d: %w", i+1, err)
		}
	}
	return bids, nil
}
