package registry

import (
	"net/http"

	"github.com/dukex/blockflow/pkg/blocks/agent"
	"github.com/dukex/blockflow/pkg/blocks/condition"
	httpblock "github.com/dukex/blockflow/pkg/blocks/http"
	"github.com/dukex/blockflow/pkg/blocks/notion"
	"github.com/dukex/blockflow/pkg/blocks/response"
	"github.com/dukex/blockflow/pkg/blocks/router"
	"github.com/dukex/blockflow/pkg/blocks/starter"
	"github.com/dukex/blockflow/pkg/blocks/transform"
)

// BuiltinOptions configures the outbound clients of the built-in blocks.
// Zero values target the public services.
type BuiltinOptions struct {
	HTTPClient    *http.Client
	NotionBaseURL string
	OpenAIBaseURL string
}

// RegisterDefaultBlocks registers all built-in block factories with the registry.
func (r *Registry) RegisterDefaultBlocks(opts BuiltinOptions) {
	r.RegisterBlock(starter.NewFactory())
	r.RegisterBlock(condition.NewFactory())
	r.RegisterBlock(router.NewFactory())
	r.RegisterBlock(transform.NewFactory())
	r.RegisterBlock(response.NewFactory())

	r.RegisterBlock(httpblock.NewFactory(opts.HTTPClient))
	r.RegisterBlock(notion.NewFactory(opts.HTTPClient, opts.NotionBaseURL))
	r.RegisterBlock(agent.NewFactory(opts.HTTPClient, opts.OpenAIBaseURL))
}
