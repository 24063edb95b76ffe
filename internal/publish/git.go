package publish

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// CommandRunner executes name with args in dir and returns combined output.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// GitConfig identifies the committer and the commit message.
type GitConfig struct {
	WorkDir   string
	UserName  string
	UserEmail string
	Message   string
}

// GitPusher commits and pushes the output directory.
type GitPusher struct {
	cfg    GitConfig
	run    CommandRunner
	logger *zap.Logger
}

// NewGitPusher builds a pusher. A nil runner uses ExecRunner.
func NewGitPusher(cfg GitConfig, run CommandRunner, logger *zap.Logger) *GitPusher {
	if run == nil {
		run = ExecRunner
	}
	if cfg.Message == "" {
		cfg.Message = "feat: add daily screenshots"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitPusher{cfg: cfg, run: run, logger: logger}
}

// Push stages dir, commits it when something changed and pushes the branch.
func (g *GitPusher) Push(ctx context.Context, dir string) error {
	if err := g.git(ctx, "add", "--", dir); err != nil {
		return err
	}

	if _, err := g.run(ctx, g.cfg.WorkDir, "git", "diff", "--cached", "--quiet", "--", dir); err == nil {
		g.logger.Info("no screenshot changes to commit", zap.String("dir", dir))
	} else {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return fmt.Errorf("git diff: %w", err)
		}
		if err := g.git(ctx, g.identity("commit", "-m", g.cfg.Message)...); err != nil {
			return err
		}
	}

	if err := g.git(ctx, "push"); err != nil {
		return err
	}
	g.logger.Info("screenshots pushed", zap.String("dir", dir))
	return nil
}

func (g *GitPusher) identity(args ...string) []string {
	var out []string
	if g.cfg.UserName != "" {
		out = append(out, "-c", "user.name="+g.cfg.UserName)
	}
	if g.cfg.UserEmail != "" {
		out = append(out, "-c", "user.email="+g.cfg.UserEmail)
	}
	return append(out, args...)
}

func (g *GitPusher) git(ctx context.Context, args ...string) error {
	out, err := g.run(ctx, g.cfg.WorkDir, "git", args...)
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", subcommand(args), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}
