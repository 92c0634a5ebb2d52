// Package exporter renders the run's output artifacts: the investment
// workbook consumed by the weekly review (holdings, screening candidates,
// and a comparison sheet) and a CSV snapshot of the held positions.
//
// The exporter is a pure downstream consumer: it receives the two entity
// collections and formats them, holding no screening logic of its own.
package exporter
