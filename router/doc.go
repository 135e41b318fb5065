/*
Package router hands new requests to the transport that carries them and returns the handle the engine later uses
to correlate the response.

Two transport shapes exist:
  - A query-style transport opens a query against a responder and delivers the answer to a notify location. It
    identifies the query by a QueryID.
  - A post-style transport dispatches a GET or POST request to a remote state machine. It identifies the request by
    its commitment.

The router never looks inside requests or responses beyond picking the transport.
*/
package router
