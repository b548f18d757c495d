// Package mail delivers sign-in confirmation codes.
//
// The sign-in flow only depends on [Sender]. Two implementations ship with
// the module: [AMQPSender] publishes a JSON envelope to a RabbitMQ queue
// consumed by a separate mailer, and [WriterSender] prints the message for
// local development.
package mail
