/*
Package httpserver implements the HTTP API of the name service client.

It exposes read-side endpoints over the ownership engine and the registrar:
domain listings for an address, single-name info, availability, and price
quotes. Write operations (register, renew, transfer) are deliberately not
exposed over HTTP; they require the wallet and run through the CLI.

# Endpoints

  - GET /api/v1/domains/{address} - Domains owned by an address
  - GET /api/v1/names/{name} - On-chain record for one name
  - GET /api/v1/names/{name}/available - Registration availability
  - GET /api/v1/names/{name}/price - Price quote, ?duration=<seconds>
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

A degraded ownership lookup (indexer down and chain scan incomplete) still
returns the partial domain list with "complete": false, so callers can
distinguish an empty portfolio from a blind spot.
*/
package httpserver
