// Package toast sends transient notifications to the page.
//
// Toasts are emitted as "rally:toast" events through an Emitter, normally a
// live session. The page shows them with its own toast widget; nothing here
// depends on how that widget works.
//
//	toast.Success(session, "Sub plan saved")
//	toast.Error(session, "Network error while updating availability.")
//
// Notifier adapts the package to optimistic.Notifier so that every rolled
// back action surfaces as an error toast.
package toast
