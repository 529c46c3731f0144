// Package providers wires up every platform resolver. Blank-import it to
// populate mediagrab.DefaultProviderRegistry with default configurations, or
// call NewRegistry to build one with a shared HTTP client.
package providers

import (
	"net/http"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/provider/instagram"
	"github.com/dkamalov/mediagrab/provider/tiktok"
	"github.com/dkamalov/mediagrab/provider/youtube"
)

func NewRegistry(client *http.Client) *mediagrab.ProviderRegistry {
	registry := &mediagrab.ProviderRegistry{}

	youtubeConfig := youtube.NewConfig()
	youtubeConfig.HTTPClient = client
	registry.MustAdd(youtubeConfig.Provider())

	tiktokConfig := tiktok.NewConfig()
	tiktokConfig.HTTPClient = client
	registry.MustAdd(tiktokConfig.Provider())

	instagramConfig := instagram.NewConfig()
	instagramConfig.HTTPClient = client
	registry.MustAdd(instagramConfig.Provider())

	return registry
}

func init() {
	mediagrab.DefaultProviderRegistry.MustAdd(youtube.NewConfig().Provider())
	mediagrab.DefaultProviderRegistry.MustAdd(tiktok.NewConfig().Provider())
	mediagrab.DefaultProviderRegistry.MustAdd(instagram.NewConfig().Provider())
}
