// Package rest exposes the tables of a relational database over HTTP.
//
// Table shapes are read from the catalog on every request, so tables created or altered while
// the server runs are served without a restart. Rows are addressed either by the table's
// identity column or by matching every supplied field.
//
//	Method  | Path                          | Body
//	--------|-------------------------------|-----------------------------------
//	GET     | /api/tables                   |
//	GET     | /api/data/{tableName}         |
//	POST    | /api/data/{tableName}         | {"col": value, ...}
//	PUT     | /api/data/{tableName}/{rowId} | {"col": value, ...}
//	DELETE  | /api/data/{tableName}/{rowId} |
//	POST    | /api/data/{tableName}/update  | {"original": {...}, "updated": {...}}
//	POST    | /api/data/{tableName}/delete  | {"col": value, ...}
//	GET     | /healthz                      |
//
// Write operations answer {"message": "..."}. The Prefer header (RFC 7240) asks for more:
//
//	Header                         | Description
//	-------------------------------|----------------------------------------------------
//	Prefer: return=representation  | POST /api/data/{tableName} includes the row identity
//	Prefer: count=exact            | update/delete by match include the affected row count
//
// Errors answer {"message": "...", "code": N}, except tables without a usable identity column,
// which answer application/problem+json with status 500.
package rest
