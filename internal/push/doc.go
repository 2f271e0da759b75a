// Package push delivers Web Push notifications to stored subscriptions.
//
// A Transport performs one send and reports ErrPermanent when the push service
// says the endpoint is gone. The Dispatcher turns one send into an Outcome with
// a bounded timeout, and the Coordinator fans a payload out to many recipients,
// counts the results and prunes dead endpoints from the store.
package push
