package gas

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
)

// listenerFactory adapts a CostTable and a Meter into wazero's
// experimental.FunctionListenerFactory, the sanctioned fallback named in
// the engine's gas metering design for engines without a public compiler
// metering middleware: charge each function's statically-known cost at
// call-entry, rather than at individual-opcode granularity.
type listenerFactory struct {
	table CostTable
	meter *Meter
}

// NewListenerFactory returns an experimental.FunctionListenerFactory that
// charges meter with the statically-computed per-function cost from table
// every time a module-defined function is entered. Imported (host) functions
// have no entry in table and are left unmetered here — their cost is
// charged explicitly by hostabi at the call site.
func NewListenerFactory(table CostTable, meter *Meter) experimental.FunctionListenerFactory {
	return &listenerFactory{table: table, meter: meter}
}

func (f *listenerFactory) NewListener(def api.FunctionDefinition) experimental.FunctionListener {
	cost, ok := f.table.Lookup(def.Index())
	if !ok {
		return nil
	}
	return &functionListener{cost: cost, meter: f.meter}
}

type functionListener struct {
	cost  FunctionCost
	meter *Meter
}

func (l *functionListener) Before(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) context.Context {
	// FunctionListener has no way to abort the call directly from Before;
	// a charge that exhausts the meter instead fires the cancel callback
	// the meter was built with (see gas.NewMeter), which the driver wires
	// to the invocation's own context. wazero aborts the running call
	// shortly after, once it next observes ctx canceled.
	_ = l.meter.Charge(l.cost.Total)
	return ctx
}

func (l *functionListener) After(context.Context, api.Module, api.FunctionDefinition, []uint64) {}
