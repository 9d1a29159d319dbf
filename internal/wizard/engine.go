package wizard

import (
	"context"
	"strings"

	"zolo/internal/accumulator"
	"zolo/internal/auth"
	"zolo/internal/block"
	"zolo/internal/cache"
	"zolo/internal/dispatch"
	"zolo/internal/display"
	"zolo/internal/logging"
	"zolo/internal/nav"
	"zolo/internal/session"
	"zolo/internal/zpath"
)

// AccessDeniedMessage is shown when a step or block denies.
const AccessDeniedMessage = "Access denied."

// GuestOnlyMessage is shown when an authenticated user hits a zGuest page.
const GuestOnlyMessage = "You are already logged in."

// Engine is the loop engine. One engine serves the whole process; all
// per-run state lives in the ExecContext.
type Engine struct {
	sess    *session.Session
	disp    *dispatch.Dispatcher
	nav     *nav.Navigator
	authn   auth.Authenticator
	display display.Display
	cache   *cache.Orchestrator
}

// New wires the engine's collaborators.
func New(sess *session.Session, d *dispatch.Dispatcher, navigator *nav.Navigator,
	authn auth.Authenticator, disp display.Display, c *cache.Orchestrator) *Engine {
	return &Engine{sess: sess, disp: d, nav: navigator, authn: authn, display: disp, cache: c}
}

// Navigator returns the engine's navigator.
func (e *Engine) Navigator() *nav.Navigator { return e.nav }

// Dispatcher returns the engine's dispatch collaborator.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.disp }

// Callbacks let a caller intercept signals and errors mid-loop.
type Callbacks struct {
	// OnSignal sees every terminating signal before the engine returns
	// it. Returning SignalNone swallows the signal and the loop
	// continues; anything else is returned to the caller.
	OnSignal func(Signal) Signal
	// OnError sees dispatch errors. Its return value becomes the step
	// result. When nil, errors are logged and the loop advances.
	OnError func(key string, err error) any
}

// ExecContext is the per-run state: the accumulator, pre-resolved _data
// queries, and the latest gate submission.
type ExecContext struct {
	Acc      *accumulator.Accumulator
	Resolved map[string]any
	GateData map[string]any
}

// NewExecContext creates a fresh per-run context.
func NewExecContext() *ExecContext {
	return &ExecContext{Acc: accumulator.New(), Resolved: make(map[string]any)}
}

// ExecOptions parameterise one Execute call.
type ExecOptions struct {
	BlockName string
	StartKey  string
	Callbacks Callbacks
	Exec      *ExecContext
	// FailFast propagates dispatch errors instead of advancing past
	// them. Transactional workflows run with it set so a failure can
	// trigger rollback.
	FailFast bool
}

// Execute runs the sequential strategy over a block and returns the
// signal that ended it (SignalNone at natural end of block).
func (e *Engine) Execute(ctx context.Context, b *block.Block, opts ExecOptions) (Signal, error) {
	if opts.Exec == nil {
		opts.Exec = NewExecContext()
	}
	prepared, sig, err := e.prepare(ctx, b, opts.BlockName, opts.Exec)
	if err != nil || sig != SignalNone {
		return sig, err
	}
	keys := prepared.ExecutableKeys()
	if len(keys) == 0 {
		return SignalNone, nil
	}

	i := 0
	if opts.StartKey != "" {
		if j := findKey(keys, opts.StartKey); j >= 0 {
			i = j
		}
	}

	viaLoopback := false
	for i < len(keys) {
		key := keys[i]
		value, _ := prepared.Get(key)

		if block.IsMenu(key) && !viaLoopback {
			e.appendCrumb(KeyBase(key))
		}

		result, stepSig, stepErr := e.runStep(ctx, key, value, opts.Exec, opts.Callbacks)
		if stepErr != nil {
			if opts.FailFast {
				return SignalError, stepErr
			}
			logging.WizardError("step %s: %v", key, stepErr)
			i++
			viaLoopback = false
			continue
		}
		if stepSig.Terminating() {
			if out := e.deliverSignal(stepSig, opts.Callbacks); out != SignalNone {
				return out, nil
			}
			i++
			viaLoopback = false
			continue
		}

		// Key-jump: a string result naming another key in this block.
		if s, ok := result.(string); ok && !IsSignal(s) {
			if j := findKey(keys, s); j >= 0 {
				e.jumpCrumbs(keys, i, j)
				i = j
				viaLoopback = false
				continue
			}
		}

		if sig, ok := Normalize(result); ok {
			if out := e.deliverSignal(sig, opts.Callbacks); out != SignalNone {
				return out, nil
			}
			i++
			viaLoopback = false
			continue
		}

		if link, ok := result.(dispatch.Link); ok {
			resume, sig, err := e.followLink(ctx, link, opts)
			if err != nil {
				logging.NavError("link from %s: %v", key, err)
			} else if sig != SignalNone && sig != SignalBack {
				return sig, nil
			} else if resume != "" {
				// zBack unwound the linked scope; pick up at the parent's
				// back target. A menu target re-enters without a new crumb.
				if j := findKey(keys, resume); j >= 0 {
					i = j
					viaLoopback = true
					continue
				}
			}
		}

		// Menu loopback: menus keep control until explicitly exited.
		if j := loopbackIndex(keys, i); j >= 0 {
			i = j
			viaLoopback = true
			continue
		}
		i++
		viaLoopback = false
	}
	return SignalNone, nil
}

// prepare descends into the named block, applies block-level RBAC, and
// pre-resolves _data queries.
func (e *Engine) prepare(ctx context.Context, b *block.Block, blockName string, ec *ExecContext) (*block.Block, Signal, error) {
	if blockName != "" {
		nested, ok := b.Nested(blockName)
		if !ok {
			logging.WizardWarn("block %q not found; using parent", blockName)
		} else {
			b = nested
		}
	}

	if raw, ok := b.Get(block.MetaRBAC); ok {
		req := auth.ParseRequirement(raw)
		switch auth.Evaluate(req, e.authn, e.sess.Auth()) {
		case auth.DeniedGuest:
			e.display.AccessDenied(GuestOnlyMessage)
			return b, SignalBack, nil
		case auth.Denied:
			e.display.AccessDenied(AccessDeniedMessage)
			return b, SignalBack, nil
		}
	}

	if raw, ok := b.Get(block.MetaData); ok {
		if err := e.resolveData(ctx, raw, ec); err != nil {
			return b, SignalNone, err
		}
	}
	return b, SignalNone, nil
}

// resolveData executes the _data queries once, before iteration, so child
// steps can interpolate %data.X references.
func (e *Engine) resolveData(ctx context.Context, raw any, ec *ExecContext) error {
	queries, ok := raw.(*block.Block)
	if !ok {
		logging.WizardWarn("_data is not a mapping; ignoring")
		return nil
	}
	dc := e.dispatchContext(ec)
	for _, name := range queries.Keys() {
		payload, _ := queries.Get(name)
		if _, tagged := block.RBACValue(payload); tagged {
			// zRBAC has no meaning inside _data.
			logging.WizardWarn("_data query %s carries zRBAC; ignored", name)
		}
		// Tagged entries (zFunc, zDialog, an explicit zData) dispatch by
		// their own classification; untagged payloads are query shorthand.
		kind, _ := block.Classify(payload)
		switch kind {
		case block.KindScalar:
			if s, ok := payload.(string); ok && !dispatch.IsCallExpr(s) {
				payload = map[string]any{block.TagData: payload}
			}
		case block.KindNested:
			payload = map[string]any{block.TagData: payload}
		}
		result, err := e.disp.Dispatch(ctx, name, payload, dc)
		if err != nil {
			return err
		}
		ec.Resolved[name] = result
	}
	return nil
}

// runStep applies the shared per-step pipeline: shorthand expansion, RBAC,
// interpolation, dispatch, interactive read, accumulation.
func (e *Engine) runStep(ctx context.Context, key string, value any, ec *ExecContext, cb Callbacks) (any, Signal, error) {
	expanded := ExpandShorthand(key, value)

	req := auth.FromStep(expanded)
	switch auth.Evaluate(req, e.authn, e.sess.Auth()) {
	case auth.Denied:
		e.display.AccessDenied(AccessDeniedMessage)
		return nil, SignalNone, nil
	case auth.DeniedGuest:
		e.display.AccessDenied(GuestOnlyMessage)
		return nil, SignalBack, nil
	}

	in := e.interpolator(ec)
	interpolated := in.Value(expanded)

	result, err := e.disp.Dispatch(ctx, key, interpolated, e.dispatchContext(ec))
	if err != nil {
		if cb.OnError != nil {
			result = cb.OnError(key, err)
			err = nil
		} else {
			return nil, SignalNone, err
		}
	}

	// The dispatcher hands untagged nested blocks back; their keys run
	// through this same pipeline. Single-key signal blocks stay opaque so
	// the caller normalizes them.
	if nested, ok := result.(*block.Block); ok && !block.IsMenu(key) {
		if _, isSignal := Normalize(nested); !isSignal {
			sub, nsig, nerr := e.runNested(ctx, nested, ec, cb)
			if nerr != nil || nsig != SignalNone {
				return nil, nsig, nerr
			}
			result = sub
		}
	}

	if block.IsMenu(key) {
		result, err = e.interactMenu(key, interpolated, result)
		if err != nil {
			return nil, SignalNone, err
		}
	} else if result == nil && block.IsInteractive(key) {
		line, rerr := e.display.ReadLine(KeyBase(key) + ": ")
		if rerr != nil {
			return nil, SignalNone, rerr
		}
		result = line
	}

	if aerr := ec.Acc.Append(KeyBase(key), result); aerr != nil {
		// Menu loopback re-executes its key; first result stands.
		logging.WizardDebug("accumulator: %v", aerr)
	}
	return result, SignalNone, nil
}

// runNested executes a nested block's keys in order through the per-step
// pipeline. A signal from an inner step ends the walk and propagates;
// otherwise the inner results come back keyed by base name.
func (e *Engine) runNested(ctx context.Context, b *block.Block, ec *ExecContext, cb Callbacks) (any, Signal, error) {
	results := make(map[string]any)
	for _, k := range b.ExecutableKeys() {
		v, _ := b.Get(k)
		r, sig, err := e.runStep(ctx, k, v, ec, cb)
		if err != nil || sig != SignalNone {
			return nil, sig, err
		}
		if sig, ok := Normalize(r); ok {
			return nil, sig, nil
		}
		results[KeyBase(k)] = r
	}
	return results, SignalNone, nil
}

// interactMenu builds the menu from the step's realised options and reads
// a selection through the display collaborator.
func (e *Engine) interactMenu(key string, interpolated, dispatched any) (any, error) {
	source := dispatched
	if source == nil {
		source = interpolated
	}
	m, err := nav.BuildMenu(source, KeyBase(key), false)
	if err != nil {
		return nil, err
	}
	picked, err := m.Interact(e.display)
	if err != nil {
		return nil, err
	}
	if len(picked) == 1 {
		return picked[0].Value, nil
	}
	values := make([]any, len(picked))
	for i, o := range picked {
		values[i] = o.Value
	}
	return values, nil
}

// followLink enters the linked block with a fresh accumulator. A zBack
// from the linked scope unwinds it completely: its crumbs pop, the scope
// drops with the parent's link entry, and the session triple points back
// at the parent. The resume key is the parent's back target afterwards.
func (e *Engine) followLink(ctx context.Context, link dispatch.Link, opts ExecOptions) (string, Signal, error) {
	target, p, err := e.nav.FollowLink(link.Expr)
	if err != nil {
		return "", SignalNone, err
	}
	sub := opts
	sub.BlockName = ""
	sub.StartKey = ""
	sub.Exec = NewExecContext()
	sig, err := e.Execute(ctx, target, sub)
	if err != nil || sig != SignalBack {
		return "", sig, err
	}

	scope := p.Scope()
	resume := ""
	for e.sess.HasScope(scope) {
		before := len(e.sess.Trail(scope))
		_, key, berr := e.nav.Back(scope)
		if berr != nil {
			logging.NavError("back after link: %v", berr)
			break
		}
		resume = key
		if e.sess.HasScope(scope) && len(e.sess.Trail(scope)) == before {
			// Root scope: Pop makes no further progress.
			break
		}
	}
	return resume, SignalBack, nil
}

func (e *Engine) deliverSignal(sig Signal, cb Callbacks) Signal {
	if cb.OnSignal != nil {
		return cb.OnSignal(sig)
	}
	return sig
}

// jumpCrumbs updates breadcrumbs for a key-jump: POP_TO when the target is
// an anchored menu earlier in the block, APPEND otherwise.
func (e *Engine) jumpCrumbs(keys []string, from, to int) {
	scope := e.currentScope()
	if scope == "" {
		return
	}
	crumbs := e.nav.Crumbs()
	if to < from && block.IsAnchoredMenu(keys[to]) {
		crumbs.PopTo(scope, KeyBase(keys[to]))
		return
	}
	crumbs.Append(scope, KeyBase(keys[to]))
}

func (e *Engine) appendCrumb(key string) {
	if scope := e.currentScope(); scope != "" {
		e.nav.Crumbs().Append(scope, key)
	}
}

// currentScope derives the breadcrumb scope from the session triple.
func (e *Engine) currentScope() string {
	p, err := zpath.FromTriple(e.sess.Triple())
	if err != nil {
		return ""
	}
	return p.Scope()
}

func (e *Engine) dispatchContext(ec *ExecContext) *dispatch.Context {
	return &dispatch.Context{
		WizardMode: string(e.sess.Mode()),
		Schema:     e.cache.Schema(),
		Acc:        ec.Acc,
		Resolved:   ec.Resolved,
	}
}

// interpolator builds the resolver chain: accumulator first, then the
// pre-resolved _data map (under the "data." prefix), then the session.
func (e *Engine) interpolator(ec *ExecContext) *Interpolator {
	resolve := func(path string) (any, bool) {
		if rest, ok := strings.CutPrefix(path, "data."); ok && ec.Resolved != nil {
			if v, ok := lookupIn(ec.Resolved, rest); ok {
				return v, true
			}
		}
		if v, ok := ec.Acc.Attr(path); ok {
			return v, true
		}
		if ec.GateData != nil {
			if v, ok := lookupIn(ec.GateData, path); ok {
				return v, true
			}
		}
		return e.sess.Lookup(path)
	}
	reg := e.disp.Registry()
	return &Interpolator{
		Resolve: resolve,
		Call: func(expr string) (any, error) {
			name, args, err := dispatch.ParseCall(expr)
			if err != nil {
				return nil, err
			}
			return reg.Call(name, args...)
		},
	}
}

// lookupIn walks a dotted path into nested maps and blocks.
func lookupIn(root map[string]any, path string) (any, bool) {
	segs := strings.Split(path, ".")
	var cur any = root
	for _, seg := range segs {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case *block.Block:
			next, ok := v.Get(seg)
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}
	return cur, true
}

// findKey locates a key by exact or base-name match.
func findKey(keys []string, name string) int {
	for i, k := range keys {
		if k == name {
			return i
		}
	}
	base := KeyBase(name)
	for i, k := range keys {
		if KeyBase(k) == base {
			return i
		}
	}
	return -1
}

// loopbackIndex scans backward from the step before i for an anchored
// menu; menus loop until explicitly exited.
func loopbackIndex(keys []string, i int) int {
	for j := i - 1; j >= 0; j-- {
		if block.IsAnchoredMenu(keys[j]) {
			return j
		}
	}
	return -1
}
