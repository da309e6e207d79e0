// Package sheets implements sheetstore.Backend.
//
// Google talks to the Sheets v4 API, Memory keeps everything in process for
// demo mode and tests, and Guarded wraps either one with a circuit breaker.
package sheets
