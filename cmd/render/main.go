// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Command render exercises the whole pipeline end to end: it builds a
// one-clip timeline around a single media reference, assembles the
// frame DAG for one requested time, executes it and writes the result
// as a PNG. It is a minimal smoke-test harness, not the CLI wrapper of
// §6 (filmstrip rendering and graph dumps stay an external concern).
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"sync"

	"framegraph/effectregistry"
	"framegraph/graphbuilder"
	"framegraph/imgalgebra"
	"framegraph/imgalgebra/refengine"
	"framegraph/imgnode"
	"framegraph/mediaio"
	"framegraph/pkg/metrics"
	"framegraph/pkg/renvconfig"
	"framegraph/pkg/rlog"
	"framegraph/pluginhost"
	"framegraph/propset"
	"framegraph/rtime"
	"framegraph/timelinedoc"
)

func main() {
	if err := render(); err != nil {
		log.Fatal(fmt.Errorf("render: %w", err))
	}
}

func render() error {
	envFlag := flag.String("env", "", "path to env.yaml; empty uses a throwaway temp environment")
	mediaFlag := flag.String("media", "", "path to a still image used as the timeline's one clip")
	rateFlag := flag.Float64("rate", 24, "timeline rate in frames per second")
	frameFlag := flag.Int64("frame", 0, "frame number to render")
	durationFlag := flag.Int64("duration", 1, "clip duration in frames")
	outFlag := flag.String("out", "frame.png", "output PNG path")
	flag.Parse()

	if *mediaFlag == "" {
		return fmt.Errorf("-media is required")
	}

	env, cleanup, err := loadEnv(*envFlag)
	if err != nil {
		return err
	}
	defer cleanup() //nolint:errcheck

	logger, err := rlog.NewLogger(env.LogDBPath, &sync.WaitGroup{})
	if err != nil {
		return fmt.Errorf("could not create logger: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := logger.Start(ctx); err != nil {
		return fmt.Errorf("could not start logger: %w", err)
	}
	go logger.LogToStdout(ctx)

	rate := *rateFlag
	doc := &timelinedoc.Timeline{
		Name:            "render",
		GlobalStartTime: rtime.Zero(rate),
		Tracks: []timelinedoc.Track{
			{
				Name: "v0", Kind: timelinedoc.TrackVideo,
				Items: []timelinedoc.Item{
					{
						Kind: timelinedoc.ItemClip, Name: "clip",
						TrimmedRangeInParent: rtime.Range{
							Start:    rtime.Zero(rate),
							Duration: rtime.New(float64(*durationFlag), rate),
						},
						SourceRange: rtime.Range{
							Start:    rtime.Zero(rate),
							Duration: rtime.New(float64(*durationFlag), rate),
						},
						Media: timelinedoc.MediaRef{Kind: timelinedoc.MediaExternal, URL: *mediaFlag},
					},
				},
			},
		},
	}

	host, err := newPluginHost(env, logger)
	if err != nil {
		return err
	}
	defer host.Shutdown()

	registry := effectregistry.New()
	registry.Register("HostEffect", effectregistry.HostFactory(host))
	media := mediaio.NewReader()
	builder := graphbuilder.New(registry, media, env, logger)
	defer builder.Close() //nolint:errcheck

	t := rtime.New(float64(*frameFlag), rate)
	root, err := builder.Build(doc, t)
	if err != nil {
		return fmt.Errorf("could not build frame graph: %w", err)
	}

	nodeEnv := &imgnode.Env{Engine: refengine.New(), Media: media, Logger: logger}
	img := root.Exec(nodeEnv, t)
	if img.Empty() {
		return fmt.Errorf("rendered frame %v is empty", *frameFlag)
	}
	metrics.FramesRendered.Inc()

	return writePNG(*outFlag, img)
}

// newPluginHost opens env's descriptor cache and indexes env's plugin
// search paths into a pluginhost.Host (§4.3 Discovery). A cache open
// failure is logged and discovery proceeds uncached rather than
// aborting the render.
func newPluginHost(env *renvconfig.ConfigEnv, logger *rlog.Logger) (*pluginhost.Host, error) {
	cache, err := pluginhost.OpenDescriptorCache(env.PluginCacheDir + "/descriptors.db")
	if err != nil {
		logger.Error().Src("pluginhost").Msgf("could not open descriptor cache: %v", err)
		cache = nil
	}

	host := pluginhost.NewHost(logger, propset.New(), cache)
	host.LoadAll(env.PluginPaths)
	return host, nil
}

// loadEnv loads envPath as a renvconfig.ConfigEnv, or synthesizes a
// throwaway one under a temp directory when envPath is empty.
func loadEnv(envPath string) (*renvconfig.ConfigEnv, func() error, error) {
	if envPath == "" {
		dir, err := ioutil.TempDir("", "framegraph-render-")
		if err != nil {
			return nil, nil, fmt.Errorf("could not create temp environment: %w", err)
		}
		path := dir + "/env.yaml"
		env, err := renvconfig.NewConfigEnv(path, []byte{})
		if err != nil {
			return nil, func() error { return os.RemoveAll(dir) }, err
		}
		if err := env.PrepareEnvironment(); err != nil {
			return nil, func() error { return os.RemoveAll(dir) }, err
		}
		return env, func() error { return os.RemoveAll(dir) }, nil
	}

	envYAML, err := ioutil.ReadFile(envPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read %v: %w", envPath, err)
	}
	env, err := renvconfig.NewConfigEnv(envPath, envYAML)
	if err != nil {
		return nil, nil, err
	}
	if err := env.PrepareEnvironment(); err != nil {
		return nil, nil, err
	}
	return env, func() error { return nil }, nil
}

// writePNG encodes img, converting from the abstract float RGBA buffer
// to 8-bit straight alpha for the PNG encoder.
func writePNG(path string, img imgalgebra.Image) error {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := (y*img.Width + x) * 4
			a := img.Data[i+3]
			out.SetNRGBA(x, y, color.NRGBA{
				R: unpremult(img.Data[i+0], a),
				G: unpremult(img.Data[i+1], a),
				B: unpremult(img.Data[i+2], a),
				A: clamp8(a),
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %v: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("could not encode %v: %w", path, err)
	}
	return nil
}

func unpremult(c, a float64) uint8 {
	if a <= 0 {
		return 0
	}
	return clamp8(c / a)
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
