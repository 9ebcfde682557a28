// Package core contains the postwork domain: works, blocks and webhooks, the
// payload builder and the dispatch and callback state machine. Transport and
// storage adapters depend on this package; core must not depend on them.
package core
