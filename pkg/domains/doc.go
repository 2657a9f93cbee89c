// Package domains classifies inbound hosts for the gateway.
//
// Every request host falls into exactly one Kind:
//
//	ReservedApp         app.wondrous.com, or any host under an app domain
//	ReservedSubdomain   a reserved label under the marketing domain (www, api, ...)
//	PreviewDomain       <project-slug>.<marketing domain>
//	ReservedRootDomain  the marketing root, served by a project holding a reservation
//	CustomDomain        a verified project domain, or its www. companion
//	Unmatched           everything else
//
// Reserved labels always win over project slugs, and the marketing root never
// falls through to the custom domain lookup.
//
// # Stores
//
// PostgresStore answers the three lookups a classification can need. Wrap it
// in a CachingStore to keep hot hosts in memory:
//
//	store := domains.NewCachingStore(domains.NewPostgresStore(db), domains.DefaultCacheConfig())
//	classifier, err := domains.NewClassifier(cfg, store, logger)
//
// A failed lookup is reported as an error wrapping ErrLookupFailed. Callers
// decide how to degrade; the dispatcher serves a 404.
package domains
