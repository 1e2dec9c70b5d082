// Package retention defines the data retention policy model: how long each
// tenant's data of a given type is kept, when it is archived, and how it is
// deleted once it ages out.
//
// # Policy model
//
// A RetentionPolicy binds a (tenant, data type) pair to a retention period
// plus optional archival, deletion, legal, and scheduling settings. Policies
// are plain data validated up front; evaluating one never executes user
// code. The service subpackage runs due policies against the entity stores.
//
// # Cutoff arithmetic
//
// Period converts "how long to keep" into a concrete cutoff instant. The
// canonical calculation is calendar-accurate: subtracting 3 months from
// March 31 lands on the last day of February, not 90 days earlier. Every
// record selection in the runtime uses CutoffFrom. ApproxDays flattens a
// period into a fixed-ratio day count (months as 30 days, years as 365) and
// exists only for previews and reporting where an estimate is acceptable.
//
// # Statistics
//
// Each policy carries cumulative run statistics. Applying a run outcome
// adds the processed, archived, and deleted counts, increments exactly one
// of the success or failure counters, and folds the run duration into a
// running average over successful runs.
//
// Typed errors follow the runtime's taxonomy: ConfigurationError for
// invalid periods, schedules, or data types; NotFoundError for missing
// policies; ExecutionError for a policy run that failed partway.
package retention
