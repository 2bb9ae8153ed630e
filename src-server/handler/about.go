// This package contains the Discord handlers: slash commands for HR staff and
// the direct message conversation for employees who talk to the bot on Discord.
//
// There are 2 functions per slash command, one for registering the handler and
// the information to send to Discord (public), and one for handling the
// interaction (private).
//
// Only return errors when it's the backend's fault, nil if user's fault.
package handler
