// Package messaging provides a default event object model for the eventstore:
// DomainMessage as a generic Message, NoOpMessageConverter to turn any Message into MessageData,
// and RegistryMessageFactory to rebuild Messages from their message name.
package messaging
