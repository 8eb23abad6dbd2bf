package barney

// canonicalize resolves reference from parent. References the host cannot
// find keep their literal spelling so they can still be registered against.
func canonicalize(host Host, reference, parent string) (string, error) {
	if host == nil {
		return reference, nil
	}
	identity, err := host.Resolve(reference, parent)
	if err != nil {
		if IsNotFound(err) {
			return reference, nil
		}
		return "", err
	}
	return identity, nil
}
