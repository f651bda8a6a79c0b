// Package backend defines the capability contract that all numeric search
// backends must implement, along with the registry that discovers installed
// backend providers and resolves them per task.
//
// The numerical algorithm itself lives behind the Provider/Job boundary;
// this package never interprets matrix contents.
package backend
