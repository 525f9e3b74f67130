package binding

import (
	"fmt"
	"strings"

	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

// InterpolationBinding writes a ${...} template to one property of a
// target, such as the textContent of a text node or an attribute.
type InterpolationBinding struct {
	Interpolation  *expr.Interpolation
	Target         any
	TargetProperty string
	Mode           Mode

	// Parts holds one ContentBinding per ${...} segment, in source order.
	Parts []*ContentBinding

	env      *Env
	accessor observe.Accessor
	w        writer
	scope    *scope.Scope
	host     *scope.Scope
	bound    bool
}

// NewInterpolation creates a binding writing in to target.property.
func NewInterpolation(env *Env, in *expr.Interpolation, target any, property string, mode Mode) *InterpolationBinding {
	if mode == 0 {
		mode = ToView
	}
	b := &InterpolationBinding{
		Interpolation:  in,
		Target:         target,
		TargetProperty: property,
		Mode:           mode,
		env:            env,
		accessor:       env.locator().Resolve(target, property),
	}
	b.w = writer{env: env, name: fmt.Sprintf("interpolation %q", in.String())}
	b.Parts = make([]*ContentBinding, len(in.Expressions))
	for i, e := range in.Expressions {
		b.Parts[i] = newContentBinding(env, e, mode, b)
	}
	return b
}

// IsBound implements Binding.
func (b *InterpolationBinding) IsBound() bool {
	return b.bound
}

// Bind implements Binding: every segment is bound, then the target is
// written immediately regardless of the target kind.
func (b *InterpolationBinding) Bind(s, host *scope.Scope) error {
	if b.bound {
		if b.scope == s {
			return nil
		}
		b.Unbind()
	}
	for i, part := range b.Parts {
		if err := part.Bind(s, host); err != nil {
			for _, bound := range b.Parts[:i] {
				bound.Unbind()
			}
			return err
		}
	}
	b.scope, b.host = s, host
	b.bound = true
	return b.updateTarget(false)
}

// Unbind implements Binding.
func (b *InterpolationBinding) Unbind() {
	if !b.bound {
		return
	}
	b.bound = false
	for _, part := range b.Parts {
		part.Unbind()
	}
	b.w.cancel()
	b.scope, b.host = nil, nil
}

// Pending reports whether a deferred write is waiting for the task queue.
func (b *InterpolationBinding) Pending() bool {
	return b.w.pending()
}

func (b *InterpolationBinding) contentChanged() error {
	if !b.bound {
		return nil
	}
	return b.updateTarget(b.Mode != OneTime && b.accessor.Kind().Has(observe.AccessorLayout))
}

func (b *InterpolationBinding) updateTarget(deferred bool) error {
	v := b.Value()
	return b.w.write(deferred, func() error {
		return b.accessor.SetValue(v, b.Target, b.TargetProperty)
	})
}

// Value concatenates the static parts and the segments' cached values.
func (b *InterpolationBinding) Value() string {
	parts := b.Interpolation.Parts
	if len(b.Parts) == 1 {
		return parts[0] + observe.Stringify(b.Parts[0].value) + parts[1]
	}
	var sb strings.Builder
	sb.WriteString(parts[0])
	for i, part := range b.Parts {
		sb.WriteString(observe.Stringify(part.value))
		sb.WriteString(parts[i+1])
	}
	return sb.String()
}
