/*
Headless demo of the atlas package: packs a few generated textures,
aliases a variant, exercises the sync path and prints the residency
metrics. When an assets/ directory is present it is watched for
changes until interrupted.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calderaengine/caldera/engine/assets"
	"github.com/calderaengine/caldera/engine/atlas"
	"github.com/calderaengine/caldera/engine/core"
	"github.com/calderaengine/caldera/engine/renderer/software"
)

const configPath = "atlas.toml"

func main() {
	cfg := atlas.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := atlas.LoadConfig(configPath)
		if err != nil {
			core.LogFatal(err.Error())
		}
		cfg = loaded
	}

	a, err := atlas.New(cfg, software.New())
	if err != nil {
		core.LogFatal(err.Error())
	}
	defer a.Shutdown()

	// A 256x256 blue/white checkerboard, generated in code to avoid any
	// asset dependency.
	const checkerDim = 256
	checker := checkerboard(checkerDim)
	defaultTex, err := a.Textures.Acquire("default", checker, checkerDim, checkerDim)
	if err != nil {
		core.LogFatal(err.Error())
	}

	sprite, err := a.Textures.Acquire("sprite.gradient", gradient(96, 64), 96, 64)
	if err != nil {
		core.LogFatal(err.Error())
	}
	rotated, err := a.Textures.AcquireVariant("sprite.gradient.r90", sprite, atlas.TransformRotate90)
	if err != nil {
		core.LogFatal(err.Error())
	}

	// Same pixels under a different id share the resident region.
	dup, err := a.Textures.Acquire("sprite.gradient.copy", gradient(96, 64), 96, 64)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := a.Sync.SetPixels(defaultTex, gradient(checkerDim, checkerDim)); err != nil {
		core.LogFatal(err.Error())
	}
	if err := a.Sync.Flush(defaultTex); err != nil {
		core.LogFatal(err.Error())
	}

	for _, h := range []atlas.Handle{defaultTex, sprite, rotated, dup} {
		placement, err := a.Textures.Lookup(h)
		if err != nil {
			core.LogFatal(err.Error())
		}
		core.LogInfo("handle %d -> page %d uv (%.4f,%.4f)-(%.4f,%.4f) %s",
			h, placement.PageIndex,
			placement.UV.U0, placement.UV.V0, placement.UV.U1, placement.UV.V1,
			placement.Transform)
	}

	stats := a.Textures.Stats()
	m := core.Metrics()
	core.LogInfo("pages=%d records=%d (variants=%d) resident=%dB free_area=%dpx",
		stats.PageCount, stats.LiveRecords, stats.VariantRecords, stats.BytesResident, stats.FreeArea)
	core.LogInfo("uploads=%d (%dB) read_backs=%d repacks=%d dedup_hits=%d",
		m.Uploads, m.BytesUploaded, m.ReadBacks, m.Repacks, m.DedupHits)

	if _, err := os.Stat("assets"); err != nil {
		return
	}

	manager, err := assets.NewAssetManager(a)
	if err != nil {
		core.LogFatal(err.Error())
	}
	defer manager.Close()
	if err := manager.Watch("assets"); err != nil {
		core.LogFatal(err.Error())
	}
	core.LogInfo("watching assets/ for changes, Ctrl-C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			manager.ProcessPending()
		case <-sigCh:
			core.LogInfo("shutting down")
			return
		}
	}
}

func checkerboard(dim int) []byte {
	pixels := make([]byte, dim*dim*4)
	for i := range pixels {
		pixels[i] = 255
	}
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			if (row/32+col/32)%2 == 0 {
				continue
			}
			i := (row*dim + col) * 4
			pixels[i+0] = 0
			pixels[i+1] = 0
		}
	}
	return pixels
}

func gradient(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			pixels[i+0] = byte(255 * x / width)
			pixels[i+1] = byte(255 * y / height)
			pixels[i+2] = 128
			pixels[i+3] = 255
		}
	}
	return pixels
}
