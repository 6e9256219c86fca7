package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func configureCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "configure",
		Usage: "Interactively configure the agent profile",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			profile, err := cfg.loadProfile()
			if err != nil {
				return err
			}

			w := c.Root().Writer
			scanner := bufio.NewScanner(os.Stdin)

			fmt.Fprintf(w, "Agent name [%s]: ", profile.Name)
			if line, ok := readLine(scanner); ok && line != "" {
				profile.Name = line
			}

			fmt.Fprintf(w, "Description [%s]: ", profile.Description)
			if line, ok := readLine(scanner); ok && line != "" {
				profile.Description = line
			}

			fmt.Fprintf(w, "Objectives (one per line, blank line to finish):\n")
			var objectives []string
			for {
				fmt.Fprintf(w, "  %d> ", len(objectives)+1)
				line, ok := readLine(scanner)
				if !ok || line == "" {
					break
				}
				objectives = append(objectives, line)
			}
			if len(objectives) > 0 {
				profile.Objectives = objectives
			}

			fmt.Fprintf(w, "Model [%s]: ", profile.Model)
			if line, ok := readLine(scanner); ok && line != "" {
				profile.Model = line
			}

			if err := profile.Save(cfg.profilePath); err != nil {
				return goerr.Wrap(err, "failed to save profile")
			}

			fmt.Fprintf(w, "Profile saved to %s\n", cfg.profilePath)
			return nil
		},
	}
}

func readLine(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}
