// Command labelscan scans UPS tracking numbers and reports shipments that
// only ever produced a label.
package main
