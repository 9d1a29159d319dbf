package wizard

import (
	"context"
	"strings"

	"zolo/internal/accumulator"
	"zolo/internal/block"
	"zolo/internal/logging"
)

// Handle runs a workflow end to end with a fresh accumulator, applying
// transaction scoping when the workflow declares _transaction: true. The
// schema tier is always cleared afterwards, success or not.
func (e *Engine) Handle(ctx context.Context, workflow *block.Block) (*accumulator.Accumulator, error) {
	ec := NewExecContext()
	schema := e.cache.Schema()

	alias := ""
	if raw, ok := workflow.Get(block.MetaTransaction); ok {
		if tx, _ := raw.(bool); tx {
			alias = transactionAlias(workflow)
			if alias == "" {
				logging.WizardWarn("_transaction: true but no $alias zData step; running untransacted")
			}
		}
	}

	defer schema.Clear()

	if alias != "" {
		if err := schema.Begin(ctx, alias); err != nil {
			return ec.Acc, err
		}
	}

	_, err := e.Execute(ctx, workflow, ExecOptions{Exec: ec, FailFast: alias != ""})
	if alias != "" {
		if err != nil {
			if rerr := schema.Rollback(alias); rerr != nil {
				logging.DataError("rollback on %s: %v", alias, rerr)
			}
			return ec.Acc, err
		}
		if cerr := schema.Commit(alias); cerr != nil {
			return ec.Acc, cerr
		}
	}
	return ec.Acc, err
}

// transactionAlias finds the first zData step whose model begins with "$";
// that alias scopes the workflow's transaction.
func transactionAlias(workflow *block.Block) string {
	for _, key := range workflow.ExecutableKeys() {
		v, _ := workflow.Get(key)
		kind, payload := block.Classify(v)
		if kind != block.KindData {
			continue
		}
		model := ""
		switch p := payload.(type) {
		case string:
			model = p
		case *block.Block:
			if m, ok := p.Get("model"); ok {
				model, _ = m.(string)
			}
		case map[string]any:
			model, _ = p["model"].(string)
		}
		if strings.HasPrefix(model, "$") {
			name := strings.TrimPrefix(model, "$")
			if i := strings.IndexByte(name, '.'); i > 0 {
				name = name[:i]
			}
			return name
		}
	}
	return ""
}
