package challenge

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Transforms are the two exported functions recovered from a
// server-delivered challenge script: Sig transforms the signature
// challenge, N transforms the throttling parameter.
type Transforms struct {
	Sig func(string) (string, error)
	N   func(string) (string, error)
}

// Evaluate runs an opaque, adversarial script inside a fresh VM against a
// constrained binding surface and recovers the exported transform
// functions from an `exportedVars` object with `sigFunction` and
// `nFunction` members. The VM is owned by the returned closures and must
// only be driven from one goroutine; the dispatcher's single task lane
// guarantees that.
func Evaluate(script string, bindings map[string]any) (Transforms, error) {
	vm := goja.New()

	// Scripts expect a browser-ish global surface. Only inert stand-ins
	// are bound; anything the script probes beyond these fails inside
	// the VM rather than reaching the host.
	_ = vm.Set("console", map[string]any{
		"log":   func(...any) {},
		"warn":  func(...any) {},
		"error": func(...any) {},
	})
	for name, value := range bindings {
		if err := vm.Set(name, value); err != nil {
			return Transforms{}, fmt.Errorf("bind %q: %w", name, err)
		}
	}

	if _, err := vm.RunString(script); err != nil {
		return Transforms{}, fmt.Errorf("run challenge script: %w", err)
	}

	exported := vm.Get("exportedVars")
	if exported == nil || goja.IsUndefined(exported) || goja.IsNull(exported) {
		return Transforms{}, errors.New("challenge script exported no vars")
	}
	obj := exported.ToObject(vm)

	sigFn, err := assertFunction(vm, obj, "sigFunction")
	if err != nil {
		return Transforms{}, err
	}
	nFn, err := assertFunction(vm, obj, "nFunction")
	if err != nil {
		return Transforms{}, err
	}

	call := func(fn goja.Callable) func(string) (string, error) {
		return func(input string) (string, error) {
			res, err := fn(goja.Undefined(), vm.ToValue(input))
			if err != nil {
				return "", fmt.Errorf("transform: %w", err)
			}
			if goja.IsUndefined(res) || goja.IsNull(res) {
				return "", errors.New("transform returned no value")
			}
			return res.String(), nil
		}
	}

	return Transforms{Sig: call(sigFn), N: call(nFn)}, nil
}

func assertFunction(vm *goja.Runtime, obj *goja.Object, name string) (goja.Callable, error) {
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return nil, fmt.Errorf("challenge script did not export %s", name)
	}
	return fn, nil
}
