// Command kmsprobe drives the kmsplane allocator against a real DRM
// device or a scripted fake, for inspecting plane assignment decisions
// outside of a running compositor.
package main

import "github.com/NeowayLabs/kmsplane/internal/probecli"

func main() {
	probecli.Execute()
}
