// Package core provides the business logic for importing catalog items from
// tabular files.
//
// This package contains all domain logic independent of any UI or transport
// layer. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Pipeline
//
// An import moves through six stages. Each stage is a pure function over the
// output of the one before it, except the committer which calls the record
// store:
//
//  1. [Parse] turns an uploaded CSV or spreadsheet into a [ParsedDataset]
//  2. [AutoMap] proposes a [FieldMapping] for every header it recognizes
//  3. [ApplyTransform] converts mapped cells (number, boolean, date, case)
//  4. [Validate] produces [ValidationIssue] values with error or warning severity
//  5. [BuildPreview] and [ResolveRows] choose what the user sees and commits
//  6. [Commit] writes rows one at a time and isolates per-row failures
//
// Row indices assigned by Parse identify a row in every later stage.
//
// # Sessions
//
// [Service] holds the state of one import per session: the dataset, the
// current mappings, the configuration and the last validation result.
// Commits run in the background, capped by an [ImportLimiter]. Progress is
// broadcast to subscribers via [Service.SubscribeProgress]:
//
//	view, err := svc.StartSession(ctx, "items.csv", data)
//	cfg := view.Config
//	cfg.DefaultBranchID = branchID
//	svc.SetConfiguration(ctx, view.ID, cfg)
//	svc.StartCommit(ctx, view.ID, core.Selection{Mode: core.SelectValid})
//	for p := range progressCh { ... }
//	result, err := svc.CommitResult(ctx, view.ID)
//
// # Error Handling
//
// Parse failures are returned as [*ParseError]. Service misuse is reported
// with sentinel errors such as [ErrSessionNotFound] and [ErrUnresolvedErrors].
// [MapError] converts any of them to a [UserMessage] with a support code.
package core
