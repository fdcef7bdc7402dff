// Package bundle implements the bundle subcommand: fetch a document and
// rewrite it into a single self-contained file.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sfb/asset"
	"sfb/config"
	"sfb/css"
	"sfb/document"
	"sfb/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("bundle")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	dst := cmd.Args().Get(1)
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	applyFlags(cmd, &env.Cfg.Bundle)

	base, err := sourceURL(src)
	if err != nil {
		return fmt.Errorf("unable to interpret source '%s': %w", src, err)
	}

	session := asset.NewSession(asset.Options{
		UserAgent:    env.Cfg.Bundle.UserAgent,
		Timeout:      time.Duration(env.Cfg.Bundle.Timeout),
		MaxAssetSize: env.Cfg.Bundle.MaxAssetSize,
	}, log)

	res, err := session.Retrieve(nil, base)
	if err != nil {
		return fmt.Errorf("unable to retrieve document '%s': %w", src, err)
	}

	log.Info("Bundling document",
		zap.String("source", base.String()),
		zap.String("final", res.FinalURL.String()),
		zap.Int("bytes", len(res.Data)))

	bundler := document.NewBundler(session, css.Options{
		NoImages:        env.Cfg.Bundle.NoImages,
		NoFonts:         env.Cfg.Bundle.NoFonts,
		InlineAssetVars: env.Cfg.Bundle.InlineAssetVars,
	}, log)

	out, err := bundler.Bundle(res.FinalURL, res.Data)
	if err != nil {
		return err
	}

	if len(dst) == 0 {
		_, err = os.Stdout.Write(out)
		return err
	}

	dst = filepath.Join(filepath.Dir(dst), config.CleanFileName(filepath.Base(dst)))
	if !env.Overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("destination '%s' already exists, use --overwrite to replace it", dst)
		}
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create destination file '%s': %w", dst, err)
	}
	_, werr := f.Write(out)
	if err := multierr.Append(werr, f.Close()); err != nil {
		return fmt.Errorf("unable to write destination file '%s': %w", dst, err)
	}

	log.Info("Bundle written", zap.String("file", dst), zap.Int("bytes", len(out)))
	return nil
}

// applyFlags lets command line switches override configuration values.
func applyFlags(cmd *cli.Command, conf *config.BundleConfig) {
	if cmd.IsSet("no-images") {
		conf.NoImages = cmd.Bool("no-images")
	}
	if cmd.IsSet("no-fonts") {
		conf.NoFonts = cmd.Bool("no-fonts")
	}
	if cmd.IsSet("inline-asset-vars") {
		conf.InlineAssetVars = cmd.Bool("inline-asset-vars")
	}
	if cmd.IsSet("user-agent") {
		conf.UserAgent = cmd.String("user-agent")
	}
	if cmd.IsSet("timeout") {
		conf.Timeout = config.Duration(cmd.Duration("timeout"))
	}
}

// sourceURL turns SOURCE argument into an absolute URL. Anything without a
// recognized scheme is treated as a local file path.
func sourceURL(src string) (*url.URL, error) {
	if u, err := url.Parse(src); err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "data" || u.Scheme == "file") {
		return u, nil
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}
