package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/deploy"
	"github.com/JakeFAU/sitebaker/internal/server"
	"github.com/JakeFAU/sitebaker/internal/site"
	"github.com/JakeFAU/sitebaker/internal/telemetry"
)

type bakeFlags struct {
	force       bool
	deploy      bool
	message     string
	authorName  string
	authorEmail string
	slug        string
}

// siteBake is the part of a baker the bake command drives.
type siteBake interface {
	BakeAll(ctx context.Context) error
	BakeSlug(ctx context.Context, slug string) error
	Deploy(ctx context.Context, commit deploy.Commit) error
	Result() site.BakeResult
	End()
}

// openBake builds a baker and returns a release func for the resources it
// holds. It's a variable so tests can substitute a fake.
var openBake = func(ctx context.Context, rt *Runtime, req site.BakeRequest) (siteBake, func(), error) {
	providers, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: rt.Config.Telemetry.ServiceName,
		Version:     server.Version,
		ProjectID:   rt.Config.Telemetry.ProjectID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	res, err := server.OpenResources(ctx, rt.Config, rt.Logger)
	release := func() {
		res.Close()
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			rt.Logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	b, err := server.NewBakerFactory(rt.Config, res, rt.Logger.Named("baker"))(ctx, req)
	if err != nil {
		release()
		return nil, nil, err
	}
	return b, release, nil
}

// newBakeCmd creates the 'bake' subcommand.
func newBakeCmd() *cobra.Command {
	flags := &bakeFlags{}
	cmd := &cobra.Command{
		Use:   "bake",
		Short: "Bakes the site once",
		Long: `Renders the whole site into the baked directory, or a single post with
--slug. With --deploy the changed files are committed and pushed afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBake(cmd, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.force, "force", false, "rewrite files even when their content is unchanged")
	cmd.Flags().BoolVar(&flags.deploy, "deploy", false, "commit and push the baked files")
	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "commit message used with --deploy")
	cmd.Flags().StringVar(&flags.authorName, "author-name", "", "commit author name")
	cmd.Flags().StringVar(&flags.authorEmail, "author-email", "", "commit author email")
	cmd.Flags().StringVar(&flags.slug, "slug", "", "bake only the post with this slug")
	return cmd
}

func (f *bakeFlags) request() (site.BakeRequest, error) {
	if (f.authorName == "") != (f.authorEmail == "") {
		return site.BakeRequest{}, errors.New("--author-name and --author-email must be set together")
	}
	if f.authorEmail != "" && !strings.Contains(f.authorEmail, "@") {
		return site.BakeRequest{}, fmt.Errorf("--author-email %q is invalid", f.authorEmail)
	}
	return site.BakeRequest{
		Force:       f.force,
		Deploy:      f.deploy,
		Message:     f.message,
		AuthorName:  f.authorName,
		AuthorEmail: f.authorEmail,
	}, nil
}

func runBake(cmd *cobra.Command, flags *bakeFlags) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	req, err := flags.request()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, release, err := openBake(ctx, rt, req)
	if err != nil {
		return fmt.Errorf("build baker: %w", err)
	}
	defer release()
	defer b.End()

	if flags.slug != "" {
		err = b.BakeSlug(ctx, flags.slug)
	} else {
		err = b.BakeAll(ctx)
	}
	if err != nil {
		return err
	}

	if req.Deploy {
		commit := deploy.Commit{Message: req.Message, AuthorName: req.AuthorName, AuthorEmail: req.AuthorEmail}
		if err := b.Deploy(ctx, commit); err != nil {
			return err
		}
	}

	result := b.Result()
	rt.Logger.Info("Bake command finished.",
		zap.String("slug", flags.slug),
		zap.Int("staged", result.Staged),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("deleted", result.Deleted),
		zap.Bool("committed", result.Committed),
	)
	return nil
}
