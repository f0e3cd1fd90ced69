package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/continuation"
	"github.com/uncryptgame/uncrypt-client/internal/game"
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
	"github.com/uncryptgame/uncrypt-client/internal/strategy"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	store := openStore(cfg)
	ids := identity.NewResolver(store)
	client := api.New(cfg.API, store, ids)
	selector := strategy.NewSelector(client, ids, store, cfg)
	machine := game.NewMachine(cfg, store, ids, client, selector)
	coord := continuation.NewCoordinator(ids, selector, machine)

	log.Info().Str("api", cfg.API.BaseURL).Bool("remember_me", cfg.Storage.RememberMe).Msg("uncrypt client ready")

	repl(client, ids, machine, coord)
}

// openStore picks durable SQLite when remember-me is on, in-memory otherwise.
func openStore(cfg *config.Config) kvstore.Store {
	if !cfg.Storage.RememberMe {
		return kvstore.NewMemory()
	}
	store, err := kvstore.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Storage.Path).Msg("falling back to in-memory storage")
		return kvstore.NewMemory()
	}
	return store
}

func repl(client *api.Client, ids *identity.Resolver, machine *game.Machine, coord *continuation.Coordinator) {
	ctx := context.Background()

	if res, err := coord.CheckForActiveGame(ctx); err == nil && res.HasActive {
		fmt.Printf("unfinished game found (%s, %d/%d mistakes, %.0f%% done) — `continue` to resume\n",
			res.Stats.Difficulty, res.Stats.Mistakes, res.Stats.MaxMistakes, res.Stats.CompletionPercent)
	}

	fmt.Println("commands: start [easy|normal|hard] [hardcore] | daily | continue | guess C P | select C | hint | show | abandon | login U P | signup U P | logout | quit")
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		args := strings.Fields(strings.TrimSpace(sc.Text()))
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit":
			return

		case "start", "daily":
			req := game.StartRequest{Daily: args[0] == "daily", Custom: args[0] == "start"}
			for _, a := range args[1:] {
				switch a {
				case "hardcore":
					req.Options.HardcoreMode = true
				case "long":
					req.Options.LongText = true
				default:
					req.Options.Difficulty = config.DifficultyFromString(a)
				}
			}
			out := machine.StartGame(ctx, req)
			switch {
			case out.Err != nil:
				fmt.Println("could not start:", out.Err)
			case out.AlreadyCompleted:
				fmt.Println("today's challenge is already completed")
			case out.ActiveGameExists:
				fmt.Println("an unfinished game exists — `continue` or `abandon` first")
			default:
				render(machine)
			}

		case "continue":
			res := coord.ContinueActiveGame(ctx)
			switch {
			case res.SessionExpired:
				fmt.Println("that game has expired — start a new one")
			case res.Err != nil:
				fmt.Println("could not continue:", res.Err)
			default:
				render(machine)
			}

		case "guess":
			if len(args) != 3 {
				fmt.Println("usage: guess <cipher-letter> <plain-letter>")
				continue
			}
			report(machine.SubmitGuess(ctx, args[1], args[2]), machine)

		case "select":
			if len(args) != 2 || !machine.SelectLetter(strings.ToUpper(args[1])) {
				fmt.Println("cannot select that letter")
				continue
			}
			render(machine)

		case "hint":
			report(machine.GetHint(ctx), machine)

		case "show":
			render(machine)

		case "abandon":
			if err := machine.AbandonGame(ctx); err != nil {
				fmt.Println("abandon failed:", err)
			}

		case "login", "signup":
			if len(args) != 3 {
				fmt.Println("usage:", args[0], "<username> <password>")
				continue
			}
			fn := client.Login
			if args[0] == "signup" {
				fn = client.Signup
			}
			u, err := fn(ctx, args[1], args[2])
			if err != nil {
				fmt.Println("auth failed:", err)
				continue
			}
			if err := ids.SaveCredential(identity.Credential{Token: u.Token, UserID: u.ID, Username: u.Username}); err != nil {
				fmt.Println("could not save credential:", err)
				continue
			}
			fmt.Println("logged in as", u.Username)

		case "logout":
			_ = client.Logout(ctx)
			if err := ids.ClearCredential(); err != nil {
				fmt.Println("logout failed:", err)
			}

		default:
			fmt.Println("unknown command:", args[0])
		}
	}
}

// report prints the result of a move and re-renders on success.
func report(out game.GuessOutcome, machine *game.Machine) {
	switch {
	case out.Rejected:
		fmt.Println("invalid move")
	case out.SessionExpired:
		fmt.Println("session expired — start a new game")
	case out.Err != nil:
		fmt.Println("move failed:", out.Err)
	default:
		render(machine)
		if out.Lost {
			fmt.Println("out of mistakes — game over")
		}
	}
}

func render(machine *game.Machine) {
	vm := machine.ViewModel()
	fmt.Println(vm.Ciphertext)
	fmt.Println(vm.Display)
	fmt.Printf("mistakes %d/%d  guessed %s\n", vm.Mistakes, vm.MaxMistakes, strings.Join(vm.GuessedLetters, ""))
	switch vm.Phase {
	case game.PhaseWon:
		if vm.WinData != nil {
			fmt.Printf("you won! score %d (%d mistakes, %ds)\n", vm.WinData.Score, vm.WinData.Mistakes, vm.WinData.GameTimeSeconds)
		} else {
			fmt.Println("you won!")
		}
	case game.PhasePendingVerification:
		fmt.Println("solved — confirming with server...")
	case game.PhaseLost:
		fmt.Println("game over")
	}
}
