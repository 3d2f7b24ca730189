// Package faultline is an error-reporting client. It captures errors from a
// host application, enriches them with contextual metadata, redacts
// sensitive parameters through a filter chain, and delivers the resulting
// notice to a remote collection endpoint.
//
// Delivery is either asynchronous (Notify: bounded worker pool,
// fire-and-forget) or synchronous (NotifySync: blocking, returns the
// outcome). Both paths settle a single-resolution Promise, so suppression,
// transport failures and acceptance all surface the same way.
//
//	cfg := &faultline.Config{ProjectID: 1, ProjectKey: "key"}
//	notifier, err := faultline.New(cfg)
//	if err != nil {
//		// configuration error
//	}
//	defer notifier.Close(context.Background())
//
//	notifier.Notify(err, faultline.Params{"user": "bob"})
package faultline
