// Package stage provides the built-in processing stages: dedup, priority,
// noise, classify, catalyst, and expr.
//
// Every stage implements chain.Stage and can be built from configuration
// through the factories returned by Factories:
//
//	stages:
//	  - kind: dedup
//	    options: {capacity: 5000, scope: source}
//	  - kind: classify
//	  - kind: expr
//	    name: tickers-only
//	    options: {when: 'ticker != ""'}
package stage
