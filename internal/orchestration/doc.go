// Package orchestration turns a loaded plan into provisioning actions and
// runs them.
//
// BuildActions maps every config.Step to its action in plan order. The
// Reconciler wires the dependencies a plan needs (an executor for the target
// host, a lazily opened database, an object store client) and hands the
// actions to provisioning.Run.
//
// # Usage
//
//	reconciler, err := orchestration.NewReconciler(ctx, cfg, timeouts)
//	defer reconciler.Close()
//	report, err := reconciler.Reconcile(provisioning.NewContext(ctx, cfg.Name, observer))
//
// Running the same plan twice is safe: the second run finds every guarded
// action satisfied.
package orchestration
