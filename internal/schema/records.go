package schema

// DefaultTestType is filled when a test case does not declare how its
// expected output should be matched.
const DefaultTestType = "exact"

// validateFileScaffold checks a per-file scaffold document: the generated
// starter code for one file plus the TODO lists keyed by task id.
func (v *Validator) validateFileScaffold(doc map[string]any) error {
	if _, ok := nonEmptyString(doc, "filename"); !ok {
		return errf(FileScaffold, "filename", "", "missing required field: filename")
	}
	filename := doc["filename"].(string)

	if _, ok := doc["code_snippet"]; !ok {
		return errf(FileScaffold, "code_snippet", filename, "scaffold for '%s' is missing required field: code_snippet", filename)
	}
	if _, ok := asString(doc["code_snippet"]); !ok {
		return errf(FileScaffold, "code_snippet", filename, "'code_snippet' in '%s' must be a string", filename)
	}

	rawTodos, present := doc["task_todos"]
	if !present || rawTodos == nil {
		return errf(FileScaffold, "task_todos", filename, "scaffold for '%s' is missing required field: task_todos", filename)
	}
	todos, ok := rawTodos.(map[string]any)
	if !ok {
		return errf(FileScaffold, "task_todos", filename, "'task_todos' in '%s' must be an object keyed by task id", filename)
	}
	for taskID, rawList := range todos {
		list, ok := asList(rawList)
		if !ok {
			return errf(FileScaffold, "task_todos", filename, "task_todos entry '%s' in '%s' must be a list", taskID, filename)
		}
		for _, item := range list {
			if _, ok := asString(item); !ok {
				return errf(FileScaffold, "task_todos", filename, "task_todos entry '%s' in '%s' has non-string item: '%v'", taskID, filename, item)
			}
		}
	}

	// instructions is optional prose; when present it must be textual.
	if raw, present := doc["instructions"]; present && raw != nil {
		if _, ok := asString(raw); !ok {
			return errf(FileScaffold, "instructions", filename, "'instructions' in '%s' must be a string", filename)
		}
	}
	return nil
}

// validateHint checks a tutoring hint document.
func (v *Validator) validateHint(doc map[string]any) error {
	if _, ok := nonEmptyString(doc, "hint"); !ok {
		return errf(Hint, "hint", "", "missing required field: hint")
	}
	if _, ok := nonEmptyString(doc, "hint_type"); !ok {
		return errf(Hint, "hint_type", "", "missing required field: hint_type")
	}

	// example_code is whitelisted optional: absent becomes explicit null
	// so downstream serialization is stable.
	if raw, present := doc["example_code"]; !present {
		doc["example_code"] = nil
	} else if raw != nil {
		if _, ok := asString(raw); !ok {
			return errf(Hint, "example_code", "", "'example_code' must be a string")
		}
	}
	return nil
}

// validateTestCaseDoc checks the object form of a test case list: the
// cases wrapped under a "tests" key, the other shape the generation
// prompt allows besides a bare array.
func (v *Validator) validateTestCaseDoc(doc map[string]any) error {
	raw, present := doc["tests"]
	if !present || raw == nil {
		return errf(TestCaseList, "tests", "", "missing required field: tests")
	}
	list, ok := raw.([]any)
	if !ok {
		return errf(TestCaseList, "tests", "", "'tests' must be a list")
	}
	return v.ValidateTestCases(list)
}

// ValidateTestCases checks a generated test case list fail-first. Callers
// that prefer to salvage the valid subset use ValidateTestCase per item.
func (v *Validator) ValidateTestCases(list []any) error {
	for i, item := range list {
		if err := v.ValidateTestCase(item, i); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTestCase checks one generated test case. index is only used in
// diagnostics. Fills the whitelisted defaults (empty input_data, exact
// match test_type) when absent.
func (v *Validator) ValidateTestCase(item any, index int) error {
	tc, ok := item.(map[string]any)
	if !ok {
		return errf(TestCaseList, "", "", "test case %d is not an object", index)
	}

	name, ok := nonEmptyString(tc, "test_name")
	if !ok {
		return errf(TestCaseList, "test_name", "", "test case %d is missing required field: test_name", index)
	}
	if _, ok := nonEmptyString(tc, "function_name"); !ok {
		return errf(TestCaseList, "function_name", name, "test case '%s' is missing required field: function_name", name)
	}
	if raw, present := tc["expected_output"]; !present {
		return errf(TestCaseList, "expected_output", name, "test case '%s' is missing required field: expected_output", name)
	} else if _, ok := asString(raw); !ok {
		return errf(TestCaseList, "expected_output", name, "'expected_output' in test case '%s' must be a string", name)
	}

	if raw, present := tc["input_data"]; !present || raw == nil {
		tc["input_data"] = ""
	} else if _, ok := asString(raw); !ok {
		return errf(TestCaseList, "input_data", name, "'input_data' in test case '%s' must be a string", name)
	}
	if _, ok := nonEmptyString(tc, "test_type"); !ok {
		tc["test_type"] = DefaultTestType
	}
	return nil
}
