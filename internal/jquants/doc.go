// Package jquants is the acquisition layer for the J-Quants equity data
// service: session authentication, the retrying/paginating fetcher, the
// latest-trading-date search, and the financial-statement collector.
//
// All calls are sequential blocking I/O. The fetcher retries rate-limit,
// server-error and transport failures inside a bounded attempt budget;
// other client errors surface immediately. Under restricted service tiers
// the usable data window can end before today; the trading-date search
// detects that boundary from the service's error text and records it on the
// session so later collection anchors there.
package jquants
